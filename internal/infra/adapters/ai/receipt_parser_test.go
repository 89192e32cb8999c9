//go:build !integration

package ai

import "testing"

func TestDecodeReceipt(t *testing.T) {
	const payload = `{"store_name":"Shoprite","currency":"USD","total":1297,
"items":[{"name":"Milk","quantity":1,"unit_price":299,"total":299}]}`

	t.Run("plain json", func(t *testing.T) {
		r, err := decodeReceipt(payload)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if r.StoreName != "Shoprite" || r.Total != 1297 || len(r.Items) != 1 {
			t.Fatalf("unexpected receipt: %+v", r)
		}
	})

	t.Run("fenced json", func(t *testing.T) {
		r, err := decodeReceipt("```json\n" + payload + "\n```")
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if r.Items[0].UnitPrice != 299 {
			t.Fatalf("unexpected item: %+v", r.Items[0])
		}
	})

	t.Run("prose rejected", func(t *testing.T) {
		if _, err := decodeReceipt("Sure! Here is the receipt."); err == nil {
			t.Fatal("expected malformed payload error")
		}
	})
}
