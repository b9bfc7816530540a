package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stock_ledger/internal/ledger"
	"stock_ledger/internal/models"
	"stock_ledger/internal/modules/health/service"
	"stock_ledger/internal/portfolio"
	"stock_ledger/internal/pricing"
	"stock_ledger/pkg/kv"
)

type offlineQuoter struct{}

func (offlineQuoter) Quote(context.Context, string) (float64, error) {
	return 0, errors.New("offline")
}

type stubLedger struct{ err error }

func (s stubLedger) GetPortfolio(context.Context, int64) (*models.Portfolio, error) {
	return nil, s.err
}
func (s stubLedger) Buy(context.Context, int64, string, int64) (bool, error)  { return false, s.err }
func (s stubLedger) Sell(context.Context, int64, string, int64) (bool, error) { return false, s.err }

func newTestEngine(t *testing.T, l Ledger) (*gin.Engine, *service.State) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	state := service.NewState()
	r := gin.New()
	NewHandler(l, state, zap.NewNop()).Register(r)
	return r, state
}

func do(r http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestAPI_TradeFlow(t *testing.T) {
	mem := kv.NewMemory()
	store := portfolio.NewStore(mem, portfolio.Config{}, zap.NewNop())
	source := pricing.NewSource(offlineQuoter{}, pricing.FixedFallback(100), zap.NewNop())
	cache := pricing.NewCache(mem, source, pricing.CacheConfig{}, zap.NewNop())
	svc := ledger.NewService(store, cache, ledger.DefaultPolicy(), zap.NewNop())
	r, state := newTestEngine(t, svc)
	ctx := context.Background()

	// неизвестный пользователь: сделка отклонена, портфель не создаётся
	rec := do(r, http.MethodPost, "/v1/api/sell_stock/7/AAPL/1")
	if rec.Code != http.StatusOK || rec.Body.String() != "false" {
		t.Fatalf("sell for unknown user = %d %s", rec.Code, rec.Body.String())
	}
	if _, err := store.Get(ctx, 7); !errors.Is(err, portfolio.ErrNotFound) {
		t.Errorf("portfolio created by rejected trade: %v", err)
	}

	p := models.NewPortfolio()
	p.Holdings["AAPL"] = 10
	p.Balance = decimal.NewFromInt(1000)
	if err := store.Put(ctx, 42, p); err != nil {
		t.Fatalf("Put: %v", err)
	}

	rec = do(r, http.MethodPost, "/v1/api/sell_stock/42/AAPL/3")
	if rec.Code != http.StatusOK || rec.Body.String() != "true" {
		t.Fatalf("sell = %d %s", rec.Code, rec.Body.String())
	}
	if state.LastTrade().IsZero() {
		t.Error("successful trade did not touch health state")
	}

	rec = do(r, http.MethodGet, "/v1/api/get_stocks/42")
	if rec.Code != http.StatusOK {
		t.Fatalf("get_stocks = %d", rec.Code)
	}
	var got models.Portfolio
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Holdings["AAPL"] != 7 || !got.Balance.Equal(decimal.NewFromInt(1300)) || len(got.History) != 1 {
		t.Errorf("portfolio = %+v", got)
	}

	rec = do(r, http.MethodPost, "/v1/api/buy_stock/42/AAPL/2")
	if rec.Code != http.StatusOK || rec.Body.String() != "true" {
		t.Fatalf("buy = %d %s", rec.Code, rec.Body.String())
	}
}

func TestAPI_GetStocksCreatesEmpty(t *testing.T) {
	mem := kv.NewMemory()
	store := portfolio.NewStore(mem, portfolio.Config{}, zap.NewNop())
	svc := ledger.NewService(store, nil, ledger.DefaultPolicy(), zap.NewNop())
	r, _ := newTestEngine(t, svc)

	rec := do(r, http.MethodGet, "/v1/api/get_stocks/5")
	if rec.Code != http.StatusOK {
		t.Fatalf("get_stocks = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"StockMap", "ActionMap", "Balance"} {
		if _, ok := body[key]; !ok {
			t.Errorf("response is missing %q: %s", key, rec.Body.String())
		}
	}
}

func TestAPI_BadRequests(t *testing.T) {
	r, _ := newTestEngine(t, stubLedger{})

	testCases := []struct {
		name   string
		method string
		path   string
	}{
		{"non-numeric id", http.MethodGet, "/v1/api/get_stocks/abc"},
		{"non-numeric trade id", http.MethodPost, "/v1/api/buy_stock/x/AAPL/1"},
		{"zero amount", http.MethodPost, "/v1/api/buy_stock/1/AAPL/0"},
		{"negative amount", http.MethodPost, "/v1/api/sell_stock/1/AAPL/-2"},
		{"non-numeric amount", http.MethodPost, "/v1/api/sell_stock/1/AAPL/many"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := do(r, tc.method, tc.path); rec.Code != http.StatusBadRequest {
				t.Errorf("%s %s = %d, want 400", tc.method, tc.path, rec.Code)
			}
		})
	}
}

func TestAPI_ErrorStatuses(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want int
	}{
		{"store unavailable", errors.Join(portfolio.ErrStoreUnavailable, context.DeadlineExceeded), http.StatusServiceUnavailable},
		{"conflict", portfolio.ErrConflict, http.StatusConflict},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, _ := newTestEngine(t, stubLedger{err: tc.err})
			if rec := do(r, http.MethodPost, "/v1/api/buy_stock/1/AAPL/1"); rec.Code != tc.want {
				t.Errorf("buy = %d, want %d", rec.Code, tc.want)
			}
			if rec := do(r, http.MethodGet, "/v1/api/get_stocks/1"); rec.Code != tc.want {
				t.Errorf("get_stocks = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestAPI_StoreConnectivityRecovers(t *testing.T) {
	stub := &stubLedger{err: errors.Join(portfolio.ErrStoreUnavailable, context.DeadlineExceeded)}
	r, state := newTestEngine(t, stub)
	state.SetStoreConnected(true)

	if rec := do(r, http.MethodPost, "/v1/api/buy_stock/1/AAPL/1"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("buy = %d, want 503", rec.Code)
	}
	if state.StoreConnected() {
		t.Fatal("store still reported connected after 503")
	}

	stub.err = nil
	if rec := do(r, http.MethodPost, "/v1/api/sell_stock/1/AAPL/1"); rec.Code != http.StatusOK {
		t.Fatalf("sell = %d, want 200", rec.Code)
	}
	if !state.StoreConnected() {
		t.Error("store not reported connected after a successful request")
	}

	stub.err = portfolio.ErrStoreUnavailable
	do(r, http.MethodGet, "/v1/api/get_stocks/1")
	stub.err = nil
	_ = do(r, http.MethodGet, "/v1/api/get_stocks/1")
	if !state.StoreConnected() {
		t.Error("get_stocks did not restore store connectivity")
	}
}
