package symbols

import (
	"reflect"
	"testing"
)

func TestInstrumentID(t *testing.T) {
	tests := []struct {
		in    string
		quote string
		want  string
	}{
		{"BTCUSDT", "USDT", "BTC"},
		{"1000PEPEUSDT", "", "1000PEPE"},
		{"eth-usdt", "usdt", "ETH"},
		{"SOL/USDT", "USDT", "SOL"},
		{"BTCUSDC", "USDT", "BTCUSDC"},
		{"USDT", "USDT", "USDT"},
	}
	for _, tt := range tests {
		if got := InstrumentID(tt.in, tt.quote); got != tt.want {
			t.Errorf("InstrumentID(%s,%s)=%s want %s", tt.in, tt.quote, got, tt.want)
		}
	}
}

func TestSymbol(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"BTC", "BTCUSDT"},
		{"eth", "ETHUSDT"},
		{"XRPUSDT", "XRPUSDT"},
	}
	for _, tt := range tests {
		if got := Symbol(tt.in, ""); got != tt.want {
			t.Errorf("Symbol(%s)=%s want %s", tt.in, got, tt.want)
		}
	}
}

func TestSymbols(t *testing.T) {
	got := Symbols([]string{"BTC", "", "eth", "BTCUSDT", "SOL"}, "USDT")
	want := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Symbols()=%v want %v", got, want)
	}
}
