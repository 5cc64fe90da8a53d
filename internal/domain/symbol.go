package domain

// Symbol is a closed enum of the instruments this pipeline knows about.
// Only FXBTCJPY is wired end-to-end against a live exchange; the rest are
// named for parity with the source this pipeline was built from and are
// valid values wherever a Symbol is accepted (e.g. as historical-replay
// input) even though no strategy or broker instance targets them here.
type Symbol string

const (
	SymbolFXBTCJPY Symbol = "FX_BTC_JPY"
	SymbolBTCJPY   Symbol = "BTC_JPY"
	SymbolBCHBTC   Symbol = "BCH_BTC"
	SymbolETHJPY   Symbol = "ETH_JPY"
	SymbolETHUSD   Symbol = "ETH_USD"
	SymbolETHBTC   Symbol = "ETH_BTC"
	SymbolXBTUSD   Symbol = "XBTUSD"
	SymbolXBTZ19   Symbol = "XBTZ19"
	SymbolXBTZ20   Symbol = "XBTZ20"
)

// Exchange is a closed enum of the venues this pipeline knows about. Only
// BitFlyer is implemented; see DESIGN.md for why this module does not grow
// a multi-exchange abstraction.
type Exchange string

const (
	ExchangeBitFlyer Exchange = "bitFlyer"
)

// ChannelToSymbol decodes a bitFlyer realtime websocket channel name (e.g.
// "lightning_executions_FX_BTC_JPY") into its Symbol, mirroring
// encode_bitflyer_channel in trade/execution/model.py.
func ChannelToSymbol(channel string) (Symbol, bool) {
	const prefix = "lightning_executions_"
	if len(channel) <= len(prefix) || channel[:len(prefix)] != prefix {
		return "", false
	}
	candidate := Symbol(channel[len(prefix):])
	switch candidate {
	case SymbolFXBTCJPY, SymbolBTCJPY, SymbolBCHBTC, SymbolETHJPY, SymbolETHUSD, SymbolETHBTC:
		return candidate, true
	default:
		return "", false
	}
}
