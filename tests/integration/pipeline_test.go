package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	creditapp "github.com/credit/backend/internal/application/credit"
	"github.com/credit/backend/internal/domain/shared"
	"github.com/credit/backend/internal/infrastructure/cache"
	"github.com/credit/backend/internal/infrastructure/messaging"
	"github.com/credit/backend/internal/infrastructure/persistence"
	"github.com/credit/backend/internal/interfaces/http/handler"
	"github.com/credit/backend/internal/interfaces/http/middleware"
	"github.com/credit/backend/internal/interfaces/http/router"
	"github.com/credit/backend/tests/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const topic = "integrar-credito-constituido-entry"

type pipeline struct {
	reader   *testutil.QueueReader
	consumer *messaging.Consumer
	engine   *gin.Engine
}

func startPipeline(t *testing.T, tdb *TestDB) *pipeline {
	t.Helper()

	log := zaptest.NewLogger(t)
	sessions := persistence.NewGormCreditSessions(tdb.DB)
	reader := testutil.NewQueueReader(topic)

	store := cache.NewInMemoryIdempotencyStore(time.Minute)
	t.Cleanup(func() { _ = store.Close() })
	ingestion := creditapp.NewIngestionService(sessions, log,
		creditapp.WithProcessedKeyStore(store, shared.DefaultIdempotencyConfig()),
	)

	consumer := messaging.NewConsumer(reader, messaging.NewCreditHandler(ingestion), messaging.ConsumerConfig{
		Topic:         topic,
		GroupID:       "creditos-consumer-group",
		Backoff:       10 * time.Millisecond,
		CommitTimeout: time.Second,
	}, log)
	consumer.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, consumer.Stop(ctx))
		assert.True(t, reader.Closed())
	})

	require.NoError(t, middleware.SetupValidator())
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(middleware.RequestID())
	service := creditapp.NewCreditService(testutil.LoopbackPublisher{Reader: reader}, sessions, topic, log)
	router.NewRouter(engine).Register(handler.NewCreditHandler(service).Routes()).Setup()
	handler.NewSystemHandler(tdb.Database).Register(engine)

	return &pipeline{reader: reader, consumer: consumer, engine: engine}
}

func (p *pipeline) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	p.engine.ServeHTTP(w, req)
	return w
}

func TestPipeline_ConsumerPersistsOnceAndCommitsEverything(t *testing.T) {
	tdb := NewTestDB(t)
	p := startPipeline(t, tdb)

	p.reader.Push("C1", testutil.CreditPayload(t, "C1", "N1", "Sim"))
	p.reader.Push("C1", testutil.CreditPayload(t, "C1", "N1", "Sim"))
	p.reader.Push("", []byte(`{not json`))
	p.reader.Push("C2", testutil.CreditPayload(t, "C2", "N1", "Não"))
	p.reader.Push("", testutil.CreditPayload(t, "", "N1", true))
	p.reader.Push("C3", testutil.CreditPayload(t, "C3", "N2", 0))

	testutil.RequireEventually(t, func() bool {
		return len(p.reader.Committed()) == 6
	}, 10*time.Second, 20*time.Millisecond, "every message should be committed")

	assert.Equal(t, []int64{0, 1, 2, 3, 4, 5}, p.reader.Committed())
	assert.Equal(t, int64(3), tdb.CountCredits())

	stats := p.consumer.Stats()
	assert.Equal(t, int64(3), stats.Persisted)
	assert.Equal(t, int64(1), stats.Duplicates)
	assert.Equal(t, int64(2), stats.Discarded)
	assert.Equal(t, int64(0), stats.Retries)

	c2, err := persistence.NewGormCreditRepository(tdb.DB).FindByCreditNumber(context.Background(), "C2")
	require.NoError(t, err)
	assert.False(t, c2.IsSimplifiedRegime)
	assert.Equal(t, time.Date(2024, 2, 25, 13, 30, 0, 0, time.UTC), c2.ConstitutedAt)
}

func TestPipeline_HTTPToDatabase(t *testing.T) {
	tdb := NewTestDB(t)
	p := startPipeline(t, tdb)

	body := `[
		{"NumeroCredito":"C10","NumeroNfse":"N10","DataConstituicao":"2024-02-25T00:00:00Z","ValorIssqn":10.5,"TipoCredito":"ISSQN","SimplesNacional":"Sim","Aliquota":5,"ValorFaturado":210,"ValorDeducao":0,"BaseCalculo":210},
		{"NumeroCredito":"C11","NumeroNfse":"N10","DataConstituicao":"2024-02-26T00:00:00Z","ValorIssqn":7.25,"TipoCredito":"Outros","SimplesNacional":"não","Aliquota":2.5,"ValorFaturado":290,"ValorDeducao":0,"BaseCalculo":290}
	]`
	w := p.do(http.MethodPost, "/api/creditos/integrar-credito-constituido", body)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.JSONEq(t, `{"success":true,"data":{"published":2}}`, w.Body.String())

	testutil.RequireEventually(t, func() bool {
		return tdb.CountCredits() == 2
	}, 10*time.Second, 20*time.Millisecond, "credits should be persisted")

	w = p.do(http.MethodGet, "/api/creditos/N10", "")
	require.Equal(t, http.StatusOK, w.Code)

	var list struct {
		Data []creditapp.CreditResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Data, 2)
	assert.Equal(t, "C10", list.Data[0].NumeroCredito)
	assert.Equal(t, "Sim", list.Data[0].SimplesNacional)
	assert.Equal(t, "Não", list.Data[1].SimplesNacional)
	assert.Equal(t, "7.25", list.Data[1].ValorIssqn.String())

	w = p.do(http.MethodGet, "/api/creditos/credito/C11", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = p.do(http.MethodGet, "/api/creditos/credito/C99", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = p.do(http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
