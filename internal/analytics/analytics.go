package analytics

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/npezzotti/chat-relay/internal/cache"
	"github.com/npezzotti/chat-relay/internal/database"
	"github.com/npezzotti/chat-relay/internal/types"
)

// Service serves the aggregate telemetry reads and owns the rollup
// jobs: a short-interval live-stats refresh and the nightly
// daily_stats recompute.
type Service struct {
	log   *log.Logger
	db    database.RelayRepository
	cache cache.RelayCache
	cron  *cron.Cron
}

func NewService(logger *log.Logger, db database.RelayRepository, c cache.RelayCache) *Service {
	return &Service{
		log:   logger,
		db:    db,
		cache: c,
		cron:  cron.New(),
	}
}

func (s *Service) Start() error {
	if _, err := s.cron.AddFunc("@every 30s", s.refreshLiveStats); err != nil {
		return err
	}

	// rerun yesterday's rollup shortly after midnight so late log
	// appends from the shutdown drain still land
	if _, err := s.cron.AddFunc("15 0 * * *", func() {
		s.rollup(time.Now().UTC().AddDate(0, 0, -1))
		s.rollup(time.Now().UTC())
	}); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc("@every 10m", func() {
		s.rollup(time.Now().UTC())
	}); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *Service) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Service) refreshLiveStats() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := s.db.LiveStats()
	if err != nil {
		s.log.Println("live stats query:", err)
		return
	}

	if err := s.cache.SetLiveStats(ctx, liveStatsResponse(stats)); err != nil {
		s.log.Println("cache live stats:", err)
	}
}

func (s *Service) rollup(date time.Time) {
	if err := s.db.UpsertDailyStats(date); err != nil {
		s.log.Println("daily stats rollup:", err)
	}
}

// Live returns the cached aggregate counters, recomputing on miss.
func (s *Service) Live(ctx context.Context) (types.LiveStats, error) {
	if cached, err := s.cache.GetLiveStats(ctx); err != nil {
		s.log.Println("cache live stats lookup:", err)
	} else if cached != nil {
		return *cached, nil
	}

	stats, err := s.db.LiveStats()
	if err != nil {
		return types.LiveStats{}, err
	}

	resp := liveStatsResponse(stats)
	if err := s.cache.SetLiveStats(ctx, resp); err != nil {
		s.log.Println("cache live stats:", err)
	}

	return resp, nil
}

func (s *Service) Messages(days int) ([]types.DailyStat, error) {
	stats, err := s.db.QueryMessageStats(days)
	if err != nil {
		return nil, err
	}

	return dailyStatsResponse(stats), nil
}

func (s *Service) RoomStats(roomId, days int) (database.RoomStats, error) {
	return s.db.QueryRoomStats(roomId, days)
}

func (s *Service) Trends(days int) ([]types.DailyStat, error) {
	stats, err := s.db.QueryTrends(days)
	if err != nil {
		return nil, err
	}

	return dailyStatsResponse(stats), nil
}

func (s *Service) Export(filter database.ExportFilter) ([]database.MessageLogEntry, error) {
	return s.db.ExportMessages(filter)
}

// Health reports store and cache reachability for the health endpoint.
func (s *Service) Health(ctx context.Context) map[string]any {
	health := map[string]any{"status": "ok"}

	if err := s.db.Ping(); err != nil {
		health["status"] = "degraded"
		health["store"] = err.Error()
	} else {
		health["store"] = "ok"
	}

	if err := s.cache.Ping(ctx); err != nil {
		health["status"] = "degraded"
		health["cache"] = err.Error()
	} else {
		health["cache"] = "ok"
	}

	return health
}

func liveStatsResponse(stats database.LiveStats) types.LiveStats {
	return types.LiveStats{
		ActiveRooms:    stats.ActiveRooms,
		ActiveChannels: stats.ActiveChannels,
		ActiveGuilds:   stats.ActiveGuilds,
		MessagesToday:  stats.MessagesToday,
		MessagesHour:   stats.MessagesHour,
		BannedGuilds:   stats.BannedGuilds,
	}
}

func dailyStatsResponse(stats []database.DailyStat) []types.DailyStat {
	resp := make([]types.DailyStat, 0, len(stats))
	for _, st := range stats {
		resp = append(resp, types.DailyStat{
			Date:         st.Date,
			RoomId:       st.RoomId,
			MessageCount: st.MessageCount,
			UniqueUsers:  st.UniqueUsers,
			UniqueGuilds: st.UniqueGuilds,
		})
	}

	return resp
}
