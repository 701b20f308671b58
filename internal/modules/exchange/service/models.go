package service

import "strconv"

// okx /api/v5/market/ticker payload.
type okxTicker struct {
	InstID    string `json:"instId"`
	Last      string `json:"last"`
	BidPx     string `json:"bidPx"`
	AskPx     string `json:"askPx"`
	High24h   string `json:"high24h"`
	Low24h    string `json:"low24h"`
	Vol24h    string `json:"vol24h"`
	Timestamp string `json:"ts"`
}

// okx /api/v5/market/books payload.
type okxOrderBook struct {
	Asks      [][]string `json:"asks"`
	Bids      [][]string `json:"bids"`
	Timestamp string     `json:"ts"`
}

// asMap converts the ticker to the dynamically typed shape expressions
// consume: numeric fields as float64, keyed the ccxt way.
func (t *okxTicker) asMap() map[string]any {
	out := map[string]any{"symbol": t.InstID}
	put := func(key, raw string) {
		if raw == "" {
			return
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			out[key] = f
		}
	}
	put("last", t.Last)
	put("bid", t.BidPx)
	put("ask", t.AskPx)
	put("high", t.High24h)
	put("low", t.Low24h)
	put("volume", t.Vol24h)
	put("timestamp", t.Timestamp)
	return out
}

// asMap converts price levels to [price, size] float pairs.
func (b *okxOrderBook) asMap(instID string) map[string]any {
	levels := func(rows [][]string) []any {
		out := make([]any, 0, len(rows))
		for _, row := range rows {
			if len(row) < 2 {
				continue
			}
			px, err1 := strconv.ParseFloat(row[0], 64)
			sz, err2 := strconv.ParseFloat(row[1], 64)
			if err1 != nil || err2 != nil {
				continue
			}
			out = append(out, []any{px, sz})
		}
		return out
	}
	m := map[string]any{
		"symbol": instID,
		"asks":   levels(b.Asks),
		"bids":   levels(b.Bids),
	}
	if f, err := strconv.ParseFloat(b.Timestamp, 64); err == nil {
		m["timestamp"] = f
	}
	return m
}
