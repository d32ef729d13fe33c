package consolidate

import (
	"fmt"
	"testing"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
)

func txid(i int) string {
	return fmt.Sprintf("%064x", i+1)
}

func makeUTXOs(n int, addr string) []UTXO {
	utxos := make([]UTXO, n)
	for i := range utxos {
		utxos[i] = UTXO{TxID: txid(i), Vout: uint32(i % 3), Address: addr, Amount: btcutil.Amount(1000 * (i + 1)), Confirmations: 200}
	}
	return utxos
}

func TestBuildPlan_BatchCount(t *testing.T) {
	for _, n := range []int{1, 2, 5, 10, 554, 555, 556, 1200} {
		for _, m := range []int{1, 2, 3, 7, 555} {
			t.Run(fmt.Sprintf("n=%d/m=%d", n, m), func(t *testing.T) {
				plan := BuildPlan(makeUTXOs(n, "A"), []string{"A"}, m, 1_000_000)

				want := (n + m - 1) / m
				if len(plan.Batches) != want {
					t.Fatalf("batches = %d, want %d", len(plan.Batches), want)
				}
				if plan.CapReached {
					t.Error("cap should not be reached")
				}

				seen := make(map[btcjson.TransactionInput]bool)
				for i, b := range plan.Batches {
					if b.Count() < 1 || b.Count() > m {
						t.Fatalf("batch %d has %d inputs (max %d)", i, b.Count(), m)
					}
					for _, in := range b.Inputs {
						if seen[in] {
							t.Fatalf("input %s:%d spent twice", in.Txid, in.Vout)
						}
						seen[in] = true
					}
				}
				if len(seen) != n {
					t.Errorf("planned %d inputs, want %d", len(seen), n)
				}
			})
		}
	}
}

func TestBuildPlan_ListingOrderAndTotals(t *testing.T) {
	utxos := []UTXO{
		{TxID: txid(0), Address: "A", Amount: 100_000_000},
		{TxID: txid(1), Address: "X", Amount: 999},
		{TxID: txid(2), Address: "B", Amount: 200_000_000},
		{TxID: txid(3), Address: "A", Amount: 300_000_000},
	}
	plan := BuildPlan(utxos, []string{"A", "B"}, 2, 600)

	if plan.Listed != 4 || plan.Eligible != 3 {
		t.Fatalf("listed/eligible = %d/%d, want 4/3", plan.Listed, plan.Eligible)
	}
	if len(plan.Batches) != 2 {
		t.Fatalf("batches = %d, want 2", len(plan.Batches))
	}
	first := plan.Batches[0]
	if first.Inputs[0].Txid != txid(0) || first.Inputs[1].Txid != txid(2) {
		t.Errorf("first batch out of listing order: %+v", first.Inputs)
	}
	if first.Total != 300_000_000 {
		t.Errorf("first total = %v, want 3 coins", first.Total)
	}
	if plan.Batches[1].Total != 300_000_000 || plan.Batches[1].Count() != 1 {
		t.Errorf("second batch = %+v", plan.Batches[1])
	}
}

func TestBuildPlan_MaxTotalCap(t *testing.T) {
	plan := BuildPlan(makeUTXOs(10, "A"), []string{"A"}, 3, 2)

	if len(plan.Batches) != 2 {
		t.Fatalf("batches = %d, want 2", len(plan.Batches))
	}
	if !plan.CapReached {
		t.Error("cap should be reached")
	}
	if plan.Planned() != 6 {
		t.Errorf("planned = %d, want 6", plan.Planned())
	}
	if plan.Eligible != 10 {
		t.Errorf("eligible = %d, want 10", plan.Eligible)
	}
}

func TestBuildPlan_CapExactlyFilled(t *testing.T) {
	plan := BuildPlan(makeUTXOs(6, "A"), []string{"A"}, 3, 2)
	if len(plan.Batches) != 2 || plan.CapReached {
		t.Errorf("batches = %d, capReached = %v; want 2, false", len(plan.Batches), plan.CapReached)
	}
}

func TestBuildPlan_NoEligible(t *testing.T) {
	plan := BuildPlan(makeUTXOs(4, "A"), []string{"B"}, 2, 10)
	if plan.Eligible != 0 || len(plan.Batches) != 0 {
		t.Errorf("plan = %+v, want empty", plan)
	}
}

func TestFromListUnspent(t *testing.T) {
	u, err := FromListUnspent(btcjson.ListUnspentResult{TxID: txid(7), Vout: 2, Address: "A", Amount: 0.1 + 0.2, Confirmations: 150})
	if err != nil {
		t.Fatalf("FromListUnspent: %v", err)
	}
	if u.Amount != 30_000_000 {
		t.Errorf("amount = %d, want 30000000", int64(u.Amount))
	}

	if _, err := FromListUnspent(btcjson.ListUnspentResult{TxID: "xyz", Amount: 1}); err == nil {
		t.Error("expected error for invalid txid")
	}
}
