package consolidate

import (
	"fmt"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// UTXO is an unspent output as listed by the node.
type UTXO struct {
	TxID          string
	Vout          uint32
	Address       string
	Amount        btcutil.Amount
	Confirmations int64
}

// FromListUnspent converts a listunspent entry. Amounts are rounded to the
// nearest base unit; txids must be valid hashes.
func FromListUnspent(r btcjson.ListUnspentResult) (UTXO, error) {
	if _, err := chainhash.NewHashFromStr(r.TxID); err != nil {
		return UTXO{}, fmt.Errorf("utxo %s:%d: invalid txid: %w", r.TxID, r.Vout, err)
	}
	amt, err := btcutil.NewAmount(r.Amount)
	if err != nil {
		return UTXO{}, fmt.Errorf("utxo %s:%d: invalid amount: %w", r.TxID, r.Vout, err)
	}
	return UTXO{
		TxID:          r.TxID,
		Vout:          r.Vout,
		Address:       r.Address,
		Amount:        amt,
		Confirmations: r.Confirmations,
	}, nil
}

// Batch is a group of inputs spent together in one transaction.
type Batch struct {
	Inputs []btcjson.TransactionInput
	Total  btcutil.Amount
}

// Count returns the number of inputs in the batch.
func (b *Batch) Count() int {
	return len(b.Inputs)
}

func (b *Batch) add(u UTXO) {
	b.Inputs = append(b.Inputs, btcjson.TransactionInput{Txid: u.TxID, Vout: u.Vout})
	b.Total += u.Amount
}

// Plan is the batching of one listing.
type Plan struct {
	Listed     int // UTXOs returned by the node
	Eligible   int // UTXOs owned by a source address
	Batches    []Batch
	CapReached bool // eligible UTXOs were left over because of maxTotal
}

// Planned returns how many eligible UTXOs the batches spend.
func (p *Plan) Planned() int {
	n := 0
	for i := range p.Batches {
		n += p.Batches[i].Count()
	}
	return n
}

// BuildPlan filters utxos to those owned by sources and groups them, in
// listing order, into batches of at most maxInputs. At most maxTotal
// batches are produced.
func BuildPlan(utxos []UTXO, sources []string, maxInputs, maxTotal int) *Plan {
	owned := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		owned[s] = struct{}{}
	}

	plan := &Plan{Listed: len(utxos)}
	var cur Batch
	for _, u := range utxos {
		if _, ok := owned[u.Address]; !ok {
			continue
		}
		plan.Eligible++
		if len(plan.Batches) >= maxTotal {
			plan.CapReached = true
			continue
		}
		cur.add(u)
		if cur.Count() >= maxInputs {
			plan.Batches = append(plan.Batches, cur)
			cur = Batch{}
		}
	}
	if cur.Count() > 0 {
		plan.Batches = append(plan.Batches, cur)
	}
	return plan
}
