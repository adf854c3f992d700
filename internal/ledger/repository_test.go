package ledger

import (
	"strings"
	"testing"
)

func TestBalanceOfAccountWithoutLineItemsScansAsZero(t *testing.T) {
	// SUM over an empty result set is NULL; without the COALESCE defaults a
	// fresh account would fail the text scan instead of reporting 0.00.
	if got := strings.Count(balanceExpr, "COALESCE(SUM("); got != 2 {
		t.Fatalf("expected both sums defaulted to zero, found %d", got)
	}
	for _, withCutoff := range []bool{false, true} {
		if !strings.Contains(balanceQuery(withCutoff), balanceExpr) {
			t.Fatalf("balance query (cutoff=%v) must aggregate through the shared expression", withCutoff)
		}
	}
}

func TestBalanceAsOfOnlyAddsDateCutoff(t *testing.T) {
	// The as-of query must be the plain balance query plus a date bound and
	// nothing else: a cutoff at or past the newest transaction date then
	// returns the same value as the unbounded balance.
	plain := balanceQuery(false)
	cutoff := balanceQuery(true)

	if strings.Contains(plain, "fecha") {
		t.Fatalf("plain balance must not filter by date: %s", plain)
	}
	if !strings.Contains(cutoff, "t.fecha <= $2") {
		t.Fatalf("as-of balance must bound the transaction date: %s", cutoff)
	}

	stripped := strings.ReplaceAll(cutoff, ` JOIN transacciones t ON t.id = p.transaccion_id`, "")
	stripped = strings.ReplaceAll(stripped, ` AND t.fecha <= $2`, "")
	if stripped != plain {
		t.Fatalf("as-of balance must differ only by the cutoff:\ngot  %s\nwant %s", stripped, plain)
	}
}
