package handlers

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dealerreach/backend/pkg/cache"
	"github.com/dealerreach/backend/pkg/cadence"
	"github.com/dealerreach/backend/pkg/campaigns"
	"github.com/dealerreach/backend/pkg/compliance"
	"github.com/dealerreach/backend/pkg/conversations"
	"github.com/dealerreach/backend/pkg/dnc"
	"github.com/dealerreach/backend/pkg/leads"
	"github.com/dealerreach/backend/pkg/queue"
	"github.com/dealerreach/backend/pkg/scheduler"
	"github.com/dealerreach/backend/pkg/store"
	"github.com/dealerreach/backend/pkg/tracking"
)

var handlerDBSeq atomic.Int64

// testEnv wires the full service stack over sqlite and miniredis, the
// way the API process does over postgres and redis.
type testEnv struct {
	db      *gorm.DB
	leads   *store.LeadStore
	touches *store.TouchStore
	events  *store.TouchEventStore
	convs   *store.ConversationStore
	camps   *store.CampaignStore
	dnc     *store.DNCStore
	queue   *queue.MemoryQueue
	tracker *tracking.Service
	convSvc *conversations.Service
	campSvc *campaigns.Service
	leadSvc *leads.Service
	seen    *cache.DedupCache
}

func setupHandlerTest(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:handlertest%d?mode=memory&cache=shared", handlerDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	mr := miniredis.RunT(t)
	cacheClient, err := cache.NewClient("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { cacheClient.Close() })

	env := &testEnv{
		db:      db,
		leads:   store.NewLeadStore(db),
		touches: store.NewTouchStore(db),
		events:  store.NewTouchEventStore(db),
		convs:   store.NewConversationStore(db),
		camps:   store.NewCampaignStore(db),
		dnc:     store.NewDNCStore(db),
		queue:   queue.NewMemoryQueue(),
		seen:    cache.NewDedupCache(cacheClient, time.Hour),
	}

	window, err := compliance.NewWindow(compliance.WindowConfig{
		StartHour: 9, EndHour: 20, Timezone: "Europe/Madrid",
	})
	require.NoError(t, err)

	registry := dnc.NewRegistry(env.leads, env.dnc)
	sched := scheduler.NewService(env.leads, env.touches, env.events,
		cadence.NewCatalog(nil), registry, window, env.queue, nil)

	env.tracker = tracking.NewService(env.touches, env.events, env.leads, nil)
	env.convSvc = conversations.NewService(env.leads, env.convs, env.touches,
		env.tracker, sched, nil, nil, "ES", nil)
	env.campSvc = campaigns.NewService(env.camps, env.touches, env.leads, sched, nil)
	env.leadSvc = leads.NewService(env.leads, env.touches, env.events, env.dnc, sched, "ES", nil)

	return env
}
