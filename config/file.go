package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadFile loads key/value settings from a .conf file.
// Format: key = value (one per line, # for comments).
//
// Node configuration files may carry network sections such as [test] or
// [regtest]; only top-level and [main] keys are returned.
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0
	section := ""

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			continue
		}
		if section != "" && section != "main" {
			continue
		}

		// Parse key = value
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// parseStringList parses a comma-separated list.
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// WriteSampleConfig writes a tool config file template.
func WriteSampleConfig(path string) error {
	content := `# coinrpc-tools RPC configuration
#
# Used when passed with --rpc-config or found as ./coinrpc.conf.
# Without it the tools read rpcuser/rpcpassword from the node's own
# .conf file, or its .cookie file.

rpc_user = user
rpc_password = pass
rpc_host = ` + DefaultRPCHost + `
rpc_port = ` + fmt.Sprint(DefaultRPCPort) + `
`
	return os.WriteFile(path, []byte(content), 0600)
}
