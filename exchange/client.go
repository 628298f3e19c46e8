package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"coinex-trader/config"
	"coinex-trader/interfaces"
	"coinex-trader/logging"
	"coinex-trader/models"
)

// Client talks to the CoinEx v2 futures REST API.
type Client struct {
	cfg    *config.Config
	http   *resty.Client
	logger logging.LoggerInterface
}

var _ interfaces.Exchange = (*Client)(nil)

// NewClient creates a CoinEx REST client.
func NewClient(cfg *config.Config, logger logging.LoggerInterface) *Client {
	http := resty.New().
		SetBaseURL(cfg.RESTHost).
		SetTimeout(15*time.Second).
		SetHeader("Content-Type", "application/json")
	return &Client{cfg: cfg, http: http, logger: logger}
}

// sign produces the request signature: HMAC-SHA256 of timestamp+payload,
// where payload is the compact JSON body for POSTs and the raw query string
// for GETs.
func (c *Client) sign(timestamp, payload string) string {
	mac := hmac.New(sha256.New, []byte(c.cfg.APISecret))
	mac.Write([]byte(timestamp + payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) authHeaders(payload string) map[string]string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	return map[string]string{
		"X-CoinEX-Key":       c.cfg.APIKey,
		"X-CoinEX-Sign":      c.sign(ts, payload),
		"X-CoinEX-Timestamp": ts,
	}
}

func (c *Client) get(path, query string, signed bool) ([]byte, error) {
	req := c.http.R()
	if signed {
		req.SetHeaders(c.authHeaders(query))
	}
	url := path
	if query != "" {
		url += "?" + query
	}
	resp, err := req.Get(url)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("GET %s -> %d %s", url, resp.StatusCode(), resp.Body())
	return resp.Body(), nil
}

func (c *Client) post(path string, body any) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.R().
		SetHeaders(c.authHeaders(string(raw))).
		SetBody(raw).
		Post(path)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("POST %s %s -> %d %s", path, raw, resp.StatusCode(), resp.Body())
	return resp.Body(), nil
}

// apiError checks the envelope code/message pair shared by every endpoint.
func apiError(body []byte) error {
	code := gjson.GetBytes(body, "code")
	if !code.Exists() {
		return fmt.Errorf("malformed exchange response: %s", body)
	}
	if code.Int() == 0 {
		return nil
	}
	msg := gjson.GetBytes(body, "message").String()
	// Matches both "deviation" and "deviates"; the venue is not consistent.
	if strings.Contains(strings.ToLower(msg), "deviat") {
		return fmt.Errorf("exchange error %d: %s: %w", code.Int(), msg, models.ErrPriceDeviation)
	}
	return fmt.Errorf("exchange error %d: %s", code.Int(), msg)
}

// timeframePeriod maps common timeframe spellings to CoinEx kline periods.
func timeframePeriod(tf string) string {
	switch tf {
	case "1m":
		return "1min"
	case "5m":
		return "5min"
	case "15m":
		return "15min"
	case "30m":
		return "30min"
	case "1h":
		return "1hour"
	case "4h":
		return "4hour"
	case "1d":
		return "1day"
	default:
		return tf
	}
}

// FetchOHLCV returns the most recent candles for the market, time-ascending.
func (c *Client) FetchOHLCV(market, timeframe string, limit int) ([]models.Candle, error) {
	q := fmt.Sprintf("market=%s&period=%s&limit=%d", market, timeframePeriod(timeframe), limit)
	body, err := c.get("/futures/kline", q, false)
	if err != nil {
		return nil, err
	}
	if err := apiError(body); err != nil {
		return nil, err
	}

	var r struct {
		Data []struct {
			CreatedAt int64  `json:"created_at"`
			Open      string `json:"open"`
			High      string `json:"high"`
			Low       string `json:"low"`
			Close     string `json:"close"`
			Volume    string `json:"volume"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("failed to parse kline response: %w", err)
	}

	candles := make([]models.Candle, 0, len(r.Data))
	for _, k := range r.Data {
		candles = append(candles, models.Candle{
			Timestamp: k.CreatedAt,
			Open:      parseF(k.Open),
			High:      parseF(k.High),
			Low:       parseF(k.Low),
			Close:     parseF(k.Close),
			Volume:    parseF(k.Volume),
		})
	}
	return candles, nil
}

// IndexPrice returns the current index price used by the venue for
// deviation bands and position valuation.
func (c *Client) IndexPrice(market string) (float64, error) {
	body, err := c.get("/futures/market_ticker", "market="+market, false)
	if err != nil {
		return 0, err
	}
	if err := apiError(body); err != nil {
		return 0, err
	}
	price := gjson.GetBytes(body, "data.index_price")
	if !price.Exists() || price.Float() <= 0 {
		return 0, fmt.Errorf("index price missing in ticker response")
	}
	return price.Float(), nil
}

// FetchBalance returns the futures account balances by asset.
func (c *Client) FetchBalance() (map[string]models.Balance, error) {
	body, err := c.get("/assets/futures/balance", "", true)
	if err != nil {
		return nil, err
	}
	if err := apiError(body); err != nil {
		return nil, err
	}

	var r struct {
		Data []struct {
			Ccy       string `json:"ccy"`
			Available string `json:"available"`
			Frozen    string `json:"frozen"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("failed to parse balance response: %w", err)
	}

	out := make(map[string]models.Balance, len(r.Data))
	for _, b := range r.Data {
		free := parseF(b.Available)
		out[b.Ccy] = models.Balance{Free: free, Total: free + parseF(b.Frozen)}
	}
	return out, nil
}

// InstrumentLimits fetches per-market order constraints.
func (c *Client) InstrumentLimits(market string) (models.InstrumentLimits, error) {
	body, err := c.get("/futures/market", "market="+market, false)
	if err != nil {
		return models.InstrumentLimits{}, err
	}
	if err := apiError(body); err != nil {
		return models.InstrumentLimits{}, err
	}

	var r struct {
		Data []struct {
			MinAmount        string `json:"min_amount"`
			BaseCcyPrecision int32  `json:"base_ccy_precision"`
			QuoteCcyPrec     int32  `json:"quote_ccy_precision"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &r); err != nil || len(r.Data) == 0 {
		return models.InstrumentLimits{}, fmt.Errorf("failed to parse market response: %s", body)
	}

	it := r.Data[0]
	limits := models.InstrumentLimits{
		MinQuantity:       parseF(it.MinAmount),
		QuantityPrecision: it.BaseCcyPrecision,
		PricePrecision:    it.QuoteCcyPrec,
	}
	if limits.PricePrecision <= 0 {
		limits.PricePrecision = 2
	}
	return limits, nil
}

// SubmitMarketOrder places a market order and returns the venue-reported
// deal price when available.
func (c *Client) SubmitMarketOrder(market, side string, quantity float64, reduceOnly bool) (models.OrderResult, error) {
	req := map[string]any{
		"market":      market,
		"market_type": "FUTURES",
		"side":        side,
		"order_type":  "market",
		"amount":      strconv.FormatFloat(quantity, 'f', -1, 64),
		"client_id":   uuid.NewString(),
	}
	if reduceOnly {
		req["reduce_only"] = true
	}

	body, err := c.post("/futures/put_order", req)
	if err != nil {
		return models.OrderResult{}, err
	}
	if err := apiError(body); err != nil {
		return models.OrderResult{}, err
	}

	return models.OrderResult{
		OrderID:   gjson.GetBytes(body, "data.order_id").String(),
		DealPrice: gjson.GetBytes(body, "data.deal_price").Float(),
	}, nil
}

// SubmitStopOrder places a trigger order. stopType is "take_profit" or
// "stop_loss"; the order executes as a reduce-only market order once the
// trigger price is crossed.
func (c *Client) SubmitStopOrder(market, side string, quantity, triggerPrice float64, stopType string) (models.StopOrderResult, error) {
	req := map[string]any{
		"market":      market,
		"market_type": "FUTURES",
		"side":        side,
		"order_type":  "market",
		"amount":      strconv.FormatFloat(quantity, 'f', -1, 64),
		"stop_type":   stopType,
		"stop_price":  strconv.FormatFloat(triggerPrice, 'f', -1, 64),
		"reduce_only": true,
		"client_id":   uuid.NewString(),
	}

	body, err := c.post("/futures/put_stop_order", req)
	if err != nil {
		return models.StopOrderResult{}, err
	}
	if err := apiError(body); err != nil {
		return models.StopOrderResult{}, err
	}

	id := gjson.GetBytes(body, "data.stop_id").String()
	if id == "" {
		id = gjson.GetBytes(body, "data.order_id").String()
	}
	return models.StopOrderResult{OrderID: id}, nil
}

// GetOrderStatus polls the state of a previously submitted order.
func (c *Client) GetOrderStatus(market, orderID string) (models.OrderStatus, error) {
	q := fmt.Sprintf("market=%s&order_id=%s", market, orderID)
	body, err := c.get("/futures/order_status", q, true)
	if err != nil {
		return models.OrderStatus{}, err
	}
	if err := apiError(body); err != nil {
		return models.OrderStatus{}, err
	}
	return models.OrderStatus{
		Status:    gjson.GetBytes(body, "data.status").String(),
		FillPrice: gjson.GetBytes(body, "data.avg_deal_price").Float(),
	}, nil
}

// CancelOrder cancels a pending order.
func (c *Client) CancelOrder(market, orderID string) error {
	body, err := c.post("/futures/cancel_order", map[string]any{
		"market":   market,
		"order_id": orderID,
	})
	if err != nil {
		return err
	}
	return apiError(body)
}

// FetchOpenPositions lists the currently open positions for the market.
func (c *Client) FetchOpenPositions(market string) ([]models.OpenPosition, error) {
	body, err := c.get("/futures/pending_position", "market="+market, true)
	if err != nil {
		return nil, err
	}
	if err := apiError(body); err != nil {
		return nil, err
	}

	var r struct {
		Data []struct {
			Market string `json:"market"`
			Side   string `json:"side"`
			Amount string `json:"amount"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("failed to parse position response: %w", err)
	}

	out := make([]models.OpenPosition, 0, len(r.Data))
	for _, p := range r.Data {
		out = append(out, models.OpenPosition{
			Market: p.Market,
			Side:   p.Side,
			Amount: parseF(p.Amount),
		})
	}
	return out, nil
}

func parseF(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}
