package block_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ardanlabs/powchain/foundation/blockchain/block"
)

func Test_Payload(t *testing.T) {
	type transfer struct {
		To     string `json:"to"`
		From   string `json:"from"`
		Amount int    `json:"amount"`
	}

	type table struct {
		name      string
		payload   func() (block.Payload, error)
		canonical string
	}

	tt := []table{
		{
			name:      "text",
			payload:   func() (block.Payload, error) { return block.Text("Vasya -> Pety: 10$"), nil },
			canonical: `"Vasya -> Pety: 10$"`,
		},
		{
			name: "struct",
			payload: func() (block.Payload, error) {
				return block.NewRecord(transfer{To: "Vasya", From: "Petya", Amount: 100})
			},
			canonical: `{"amount":100,"from":"Petya","to":"Vasya"}`,
		},
		{
			name: "map",
			payload: func() (block.Payload, error) {
				return block.NewRecord(map[string]any{"to": "Vasya", "amount": 100, "from": "Petya"})
			},
			canonical: `{"amount":100,"from":"Petya","to":"Vasya"}`,
		},
		{
			name: "raw",
			payload: func() (block.Payload, error) {
				return block.NewRecord(json.RawMessage(`{ "to": "Vasya",  "from": "Petya", "amount": 100 }`))
			},
			canonical: `{"amount":100,"from":"Petya","to":"Vasya"}`,
		},
		{
			name: "bignumber",
			payload: func() (block.Payload, error) {
				return block.NewRecord(json.RawMessage(`[12345678901234567890, 1.50]`))
			},
			canonical: `[12345678901234567890,1.50]`,
		},
		{
			name:      "empty",
			payload:   func() (block.Payload, error) { return block.Empty(), nil },
			canonical: `[]`,
		},
	}

	t.Log("Given the need to canonicalize block payloads.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling a %s payload.", testID, tst.name)
			{
				f := func(t *testing.T) {
					p, err := tst.payload()
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to construct the payload: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to construct the payload.", success, testID)

					if got := string(p.CanonicalBytes()); got != tst.canonical {
						t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, got)
						t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, tst.canonical)
						t.Fatalf("\t%s\tTest %d:\tShould get the canonical form.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould get the canonical form.", success, testID)

					decoded, err := block.DecodePayload(p.CanonicalBytes())
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to decode the payload: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to decode the payload.", success, testID)

					if string(decoded.CanonicalBytes()) != tst.canonical {
						t.Fatalf("\t%s\tTest %d:\tShould round trip to the same canonical form, got %s.", failed, testID, decoded.CanonicalBytes())
					}
					t.Logf("\t%s\tTest %d:\tShould round trip to the same canonical form.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_PayloadAmbiguity(t *testing.T) {
	t.Log("Given the need to keep different payloads from hashing the same.")
	{
		t.Logf("\tTest 0:\tWhen a string looks like a structured value.")
		{
			text := block.Text(`[1,2]`)
			rec, err := block.NewRecord([]int{1, 2})
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to construct the record: %v", failed, err)
			}

			a := block.NewAt(1700000000, text)
			b := block.NewAt(1700000000, rec)
			if a.Hash() == b.Hash() {
				t.Fatalf("\t%s\tTest 0:\tShould get different hashes.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould get different hashes.", success)

			decoded, err := block.DecodePayload(text.CanonicalBytes())
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to decode the text: %v", failed, err)
			}
			if _, ok := decoded.(block.Text); !ok {
				t.Fatalf("\t%s\tTest 0:\tShould decode back to text, got %T.", failed, decoded)
			}
			t.Logf("\t%s\tTest 0:\tShould decode back to text.", success)
		}

		t.Logf("\tTest 1:\tWhen the caller changes the value after construction.")
		{
			m := map[string]any{"amount": 1}
			rec, err := block.NewRecord(m)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to construct the record: %v", failed, err)
			}
			m["amount"] = 2

			if string(rec.CanonicalBytes()) != `{"amount":1}` {
				t.Fatalf("\t%s\tTest 1:\tShould keep the original value, got %s.", failed, rec.CanonicalBytes())
			}
			t.Logf("\t%s\tTest 1:\tShould keep the original value.", success)
		}

		t.Logf("\tTest 2:\tWhen the text is not valid UTF-8.")
		{
			texts := []block.Text{"A->B:\xff", "A->B:\xfe", "A->B:\ufffd", "A->B:\u00ff"}

			seen := make(map[string]block.Text)
			for _, text := range texts {
				hash := block.NewAt(1700000000, text).Hash()
				if prev, exists := seen[hash]; exists {
					t.Fatalf("\t%s\tTest 2:\tShould get different hashes for %q and %q.", failed, prev, text)
				}
				seen[hash] = text
			}
			t.Logf("\t%s\tTest 2:\tShould get different hashes.", success)

			if got := string(block.Text("A->B:\xff").CanonicalBytes()); got != `"A->B:\u00ff"` {
				t.Fatalf("\t%s\tTest 2:\tShould escape the invalid byte, got %s.", failed, got)
			}
			if got := string(block.Text("A->B:\u00ff").CanonicalBytes()); got != "\"A->B:\u00ff\"" {
				t.Fatalf("\t%s\tTest 2:\tShould keep valid text as is, got %s.", failed, got)
			}
			t.Logf("\t%s\tTest 2:\tShould escape only the invalid bytes.", success)

			if err := block.CheckPayload(block.Text("A->B:\xff")); !errors.Is(err, block.ErrInvalidPayload) {
				t.Fatalf("\t%s\tTest 2:\tShould not accept the text for a chain: %v", failed, err)
			}
			if err := block.CheckPayload(block.Text("A->B:\ufffd")); err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould accept valid text: %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould only accept valid text for a chain.", success)
		}

		t.Logf("\tTest 3:\tWhen the value can't be encoded.")
		{
			if _, err := block.NewRecord(make(chan int)); err == nil {
				t.Fatalf("\t%s\tTest 3:\tShould get an error for an unsupported value.", failed)
			}
			t.Logf("\t%s\tTest 3:\tShould get an error for an unsupported value.", success)

			if _, err := block.DecodePayload(nil); err == nil {
				t.Fatalf("\t%s\tTest 3:\tShould get an error for an empty payload.", failed)
			}
			t.Logf("\t%s\tTest 3:\tShould get an error for an empty payload.", success)
		}
	}
}
