package escrow

import (
	"errors"
	"fmt"
	"testing"

	"github.com/holiman/uint256"
)

func TestSplitPaymentMethod(t *testing.T) {
	tests := []struct {
		raw          string
		wantPlatform string
		wantTagname  string
		wantOk       bool
	}{
		{"Venmo::alice", "venmo", "alice", true},
		{"  REVOLUT :: bob  ", "revolut", "bob", true},
		{"zelle::a::b", "zelle", "a::b", true},
		{"paypal", "paypal", "", false},
		{"::orphan", "", "orphan", false},
		{"wise::", "wise", "", false},
		{"   ", "", "", false},
	}

	for _, tt := range tests {
		platform, tagname := SplitPaymentMethod(tt.raw)
		if platform != tt.wantPlatform || tagname != tt.wantTagname {
			t.Errorf("SplitPaymentMethod(%q) = (%q, %q), expected (%q, %q)",
				tt.raw, platform, tagname, tt.wantPlatform, tt.wantTagname)
		}

		_, _, ok := ParsePaymentMethod(tt.raw)
		if ok != tt.wantOk {
			t.Errorf("ParsePaymentMethod(%q) ok = %v, expected %v", tt.raw, ok, tt.wantOk)
		}
	}
}

func TestFirstPaymentDetails(t *testing.T) {
	platform, tagname, ok := firstPaymentDetails([]string{"paypal", "Wise::carol", "venmo::dave"})
	if !ok || platform != "wise" || tagname != "carol" {
		t.Errorf("Expected first well-formed entry wise/carol, got %s/%s (%v)", platform, tagname, ok)
	}

	if _, _, ok := firstPaymentDetails([]string{"paypal", "::x"}); ok {
		t.Errorf("Expected no well-formed entry")
	}
}

func TestTransferMemo(t *testing.T) {
	if got := TransferMemo(IntentHash(42), 7); got != "anypay:7:42" {
		t.Errorf("Expected anypay:7:42, got %s", got)
	}
	if got := TransferMemo("custom", 3); got != "anypay:3:custom" {
		t.Errorf("Expected anypay:3:custom, got %s", got)
	}
}

func TestProtocolFee(t *testing.T) {
	if got := ProtocolFee(uint256.NewInt(10_000), 100); got.Uint64() != 100 {
		t.Errorf("Expected 100, got %s", got.Dec())
	}
	if got := ProtocolFee(uint256.NewInt(99), 100); !got.IsZero() {
		t.Errorf("Expected fee to round down to 0, got %s", got.Dec())
	}
	if got := ProtocolFee(MaxAmount, MaxProtocolFeeBps); got.Gt(MaxAmount) {
		t.Errorf("Fee exceeds amount: %s", got.Dec())
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{ErrAmountZero, "invalid_argument"},
		{ErrOracleOnly, "unauthorized"},
		{ErrStaleQuote, "failed_precondition"},
		{fmt.Errorf("%w: 9", ErrDepositNotFound), "not_found"},
		{errors.New("disk I/O error"), "internal"},
	}

	for _, tt := range tests {
		if got := ErrorKind(tt.err); got != tt.want {
			t.Errorf("ErrorKind(%v) = %s, expected %s", tt.err, got, tt.want)
		}
	}
}
