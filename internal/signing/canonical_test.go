package signing

import (
	"strings"
	"testing"
)

func TestSortedQueryOrdersKeysByteWise(t *testing.T) {
	params := map[string]string{
		"vnp_TxnRef":  "ORD1",
		"vnp_Amount":  "100000000",
		"vnp_Command": "pay",
		"Zeta":        "last-upper",
	}
	got := SortedQuery(params)
	want := "Zeta=last-upper&vnp_Amount=100000000&vnp_Command=pay&vnp_TxnRef=ORD1"
	if got != want {
		t.Fatalf("unexpected canonical string:\n got %q\nwant %q", got, want)
	}
}

func TestSortedQueryExcludesSignatureFields(t *testing.T) {
	params := map[string]string{
		"vnp_Amount":         "100",
		"vnp_SecureHash":     "deadbeef",
		"vnp_SecureHashType": "HMACSHA512",
	}
	got := SortedQuery(params, "vnp_SecureHash", "vnp_SecureHashType")
	if got != "vnp_Amount=100" {
		t.Fatalf("expected signature fields removed, got %q", got)
	}
}

func TestSortedQueryEscapedEncodesReservedCharacters(t *testing.T) {
	params := map[string]string{
		"vnp_OrderInfo": "Thanh toan don hang #42 & qua tang",
	}
	got := SortedQueryEscaped(params)
	if strings.ContainsAny(got, " #") {
		t.Fatalf("reserved characters leaked into canonical string: %q", got)
	}
	if got != "vnp_OrderInfo=Thanh+toan+don+hang+%2342+%26+qua+tang" {
		t.Fatalf("unexpected escaped canonical string: %q", got)
	}
}

func TestSortedQueryDeterministic(t *testing.T) {
	params := map[string]string{"b": "2", "a": "1", "c": "3"}
	first := SortedQuery(params)
	for i := 0; i < 50; i++ {
		if again := SortedQuery(params); again != first {
			t.Fatalf("canonical string not deterministic: %q vs %q", first, again)
		}
	}
}

func TestOrderedQueryPreservesVendorOrder(t *testing.T) {
	keys := []string{"accessKey", "amount", "orderId"}
	params := map[string]string{"orderId": "ORD1", "amount": "50000", "accessKey": "k"}
	got := OrderedQuery(keys, params)
	if got != "accessKey=k&amount=50000&orderId=ORD1" {
		t.Fatalf("unexpected ordered string: %q", got)
	}
}

func TestOrderedQueryIncludesMissingKeysEmpty(t *testing.T) {
	got := OrderedQuery([]string{"accessKey", "amount"}, map[string]string{"amount": "1"})
	if got != "accessKey=&amount=1" {
		t.Fatalf("expected empty value for missing key, got %q", got)
	}
}
