package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	httpHandler "glotrade-wallet/internal/adapter/http/handler"
	"glotrade-wallet/internal/adapter/provider"
	"glotrade-wallet/internal/adapter/storage/memory"
	redisStorage "glotrade-wallet/internal/adapter/storage/redis"
	"glotrade-wallet/internal/core/ports"
	"glotrade-wallet/internal/service"
	"glotrade-wallet/pkg/logger"
	"glotrade-wallet/pkg/metrics"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	paystackSecret = "sk_test_integration"
	rewardInterval = time.Hour
)

// testApp is the full stack: real HTTP layer, services and engine over the
// in-memory store, with Redis (miniredis) as receipt cache and job lock and
// an httptest server standing in for Paystack.
type testApp struct {
	server       *httptest.Server
	paystack     *fakePaystack
	redis        *miniredis.Miniredis
	adminToken   string
	serviceToken string
	clock        *testClock
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakePaystack answers /transaction/verify/{ref} from a table of charges.
type fakePaystack struct {
	mu      sync.Mutex
	charges map[string]string // reference -> data JSON
	calls   int
}

func (f *fakePaystack) addCharge(ref, status string, amountKobo int64, owner string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.charges[ref] = fmt.Sprintf(`{"status":%q,"reference":%q,"amount":%d,"currency":"NGN","metadata":{"owner_id":%q}}`,
		status, ref, amountKobo, owner)
}

func (f *fakePaystack) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls++
	data, ok := f.charges[strings.TrimPrefix(r.URL.Path, "/transaction/verify/")]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":false,"message":"Transaction reference not found"}`))
		return
	}
	_, _ = fmt.Fprintf(w, `{"status":true,"message":"Verification successful","data":%s}`, data)
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	paystack := &fakePaystack{charges: map[string]string{}}
	paystackSrv := httptest.NewServer(paystack)
	t.Cleanup(paystackSrv.Close)

	log := logger.New("error", false)
	store := memory.New()
	collector := metrics.New()
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}

	engine := service.NewEngine(store.Wallets(), store.Ledger(), store, redisStorage.NewIdempotencyCache(rdb), collector,
		service.EngineConfig{MaxAttempts: 500, Backoff: []time.Duration{time.Millisecond}, IdempotencyTTL: time.Hour}, log)
	ledgerSvc := service.NewLedgerService(engine, store.Wallets(), store.Ledger(), collector, log)
	tokenSvc := service.NewJWTTokenService("integration-secret-0123456789abcdef", time.Hour, "glotrade-wallet")
	topUpSvc := service.NewTopUpService(ledgerSvc, []ports.PaymentVerifier{
		provider.NewPaystack(paystackSrv.URL, paystackSecret, paystackSrv.Client()),
	}, log)
	rewards := service.NewRewardProcessor(ledgerSvc, store.Wallets(), store.Rewards(), redisStorage.NewJobLock(rdb), collector,
		service.RewardConfig{
			Rate:        decimal.RequireFromString("0.001"),
			Interval:    rewardInterval,
			Tick:        time.Minute,
			Concurrency: 4,
			LockTTL:     time.Minute,
		}, log).WithClock(clock.Now)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		LedgerSvc:      ledgerSvc,
		FreezeSvc:      service.NewFreezeService(engine, store.Wallets(), store.Freezes(), log),
		CreditSvc:      service.NewCreditService(engine, collector, log),
		ReconSvc:       service.NewReconciliationService(store.Wallets(), store.Ledger(), store.Freezes(), collector, log),
		TopUpSvc:       topUpSvc,
		RewardSvc:      rewards,
		TokenSvc:       tokenSvc,
		Webhooks:       httpHandler.WebhookSecrets{PaystackSecretKey: paystackSecret},
		HealthCheckers: []ports.HealthChecker{redisStorage.NewHealthCheck(rdb)},
		Metrics:        collector,
		Logger:         log,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	adminToken, _, err := tokenSvc.Generate("ops-alice", ports.RoleAdmin)
	require.NoError(t, err)
	serviceToken, _, err := tokenSvc.Generate("checkout", ports.RoleService)
	require.NoError(t, err)

	return &testApp{
		server:       server,
		paystack:     paystack,
		redis:        mr,
		adminToken:   adminToken,
		serviceToken: serviceToken,
		clock:        clock,
	}
}

// apiResponse is the decoded success or error envelope.
type apiResponse struct {
	Code      int `json:"-"`
	Data      json.RawMessage `json:"data"`
	ErrorCode string          `json:"error_code"`
	Meta      struct {
		Total int64 `json:"total"`
	} `json:"meta"`
}

func (a *testApp) call(t *testing.T, method, path, token string, body interface{}) apiResponse {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return a.send(t, req)
}

func (a *testApp) send(t *testing.T, req *http.Request) apiResponse {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	out.Code = resp.StatusCode
	return out
}

func (r apiResponse) into(t *testing.T, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Data, v))
}

type balanceView struct {
	Available  int64 `json:"available"`
	Frozen     int64 `json:"frozen"`
	Total      int64 `json:"total"`
	CreditUsed int64 `json:"credit_used"`
	Display    struct {
		Available string `json:"available"`
	} `json:"display"`
}

func (a *testApp) balance(t *testing.T, owner string) balanceView {
	t.Helper()
	resp := a.call(t, http.MethodGet, "/api/v1/wallets/"+owner+"/NGN/balance", a.serviceToken, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var b balanceView
	resp.into(t, &b)
	return b
}

// credit posts a top-up movement directly, bypassing provider verification.
func (a *testApp) credit(t *testing.T, owner, amount, key string) {
	t.Helper()
	resp := a.call(t, http.MethodPost, "/api/v1/wallets/"+owner+"/NGN/movements", a.serviceToken, map[string]string{
		"amount": amount, "category": "topup", "idempotency_key": key,
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.ErrorCode)
}
