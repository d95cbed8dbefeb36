package symbols

import "strings"

// DefaultQuote is the settlement asset of USDT-margined perpetuals.
const DefaultQuote = "USDT"

// InstrumentID converts an exchange symbol to the instrument id used across
// datasets by removing the quote asset suffix.
// Examples:
//
//	BTCUSDT      -> BTC
//	1000PEPEUSDT -> 1000PEPE
//	btc-usdt     -> BTC
//
// Symbols that do not end in the quote are returned upper-cased and otherwise
// unchanged.
func InstrumentID(symbol, quote string) string {
	if quote == "" {
		quote = DefaultQuote
	}
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	sym = strings.ReplaceAll(sym, "-", "")
	sym = strings.ReplaceAll(sym, "/", "")
	quote = strings.ToUpper(quote)
	if id := strings.TrimSuffix(sym, quote); id != "" {
		return id
	}
	return sym
}

// Symbol is the inverse of InstrumentID for Binance style symbols.
func Symbol(instrument, quote string) string {
	if quote == "" {
		quote = DefaultQuote
	}
	inst := strings.ToUpper(strings.TrimSpace(instrument))
	quote = strings.ToUpper(quote)
	if strings.HasSuffix(inst, quote) {
		return inst
	}
	return inst + quote
}

// Symbols maps a list of instrument ids to exchange symbols, dropping blanks
// and duplicates while keeping the first occurrence order.
func Symbols(instruments []string, quote string) []string {
	seen := make(map[string]struct{}, len(instruments))
	out := make([]string, 0, len(instruments))
	for _, inst := range instruments {
		if strings.TrimSpace(inst) == "" {
			continue
		}
		sym := Symbol(inst, quote)
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out
}
