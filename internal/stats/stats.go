package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"time"
)

// Relay metric names registered at startup.
const (
	MessagesReceived  = "MessagesReceived"
	MessagesRelayed   = "MessagesRelayed"
	MessagesRejected  = "MessagesRejected"
	DeliveriesOK      = "DeliveriesOK"
	DeliveriesFailed  = "DeliveriesFailed"
	NoticesSent       = "NoticesSent"
	PushClients       = "PushClients"
	InvalidationsSeen = "InvalidationsSeen"
)

var relayMetrics = []string{
	MessagesReceived,
	MessagesRelayed,
	MessagesRejected,
	DeliveriesOK,
	DeliveriesFailed,
	NoticesSent,
	PushClients,
	InvalidationsSeen,
}

type StatsProvider interface {
	Incr(name string)
	Decr(name string)
	Add(name string, delta int)
	Run()
}

type StatsUpdater struct {
	vars       *expvar.Map
	updateChan chan *metricsUpdateReq
}

type metricsUpdateReq struct {
	name  string
	value int
}

func (su *StatsUpdater) expvarHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	expvarData := make(map[string]any)
	su.vars.Do(func(kv expvar.KeyValue) {
		var value any
		json.Unmarshal([]byte(kv.Value.String()), &value)
		expvarData[kv.Key] = value
	})

	json.NewEncoder(w).Encode(expvarData)
}

// NewStatsUpdater creates a new stats updater instance and registers
// the relay metrics.
func NewStatsUpdater(mux *http.ServeMux) *StatsUpdater {
	su := &StatsUpdater{
		updateChan: make(chan *metricsUpdateReq, 512),
	}
	mux.Handle("GET /debug/vars", http.HandlerFunc(su.expvarHandler))
	// expvar panics on duplicate publish, so reuse the map across
	// constructions (tests build more than one updater)
	if m, ok := expvar.Get("chat-relay-stats").(*expvar.Map); ok {
		su.vars = m
	} else {
		su.vars = expvar.NewMap("chat-relay-stats")
	}
	su.initializeMetrics()

	return su
}

func (su *StatsUpdater) initializeMetrics() {
	startTime := time.Now()
	su.vars.Set("Uptime", expvar.Func(func() any {
		return time.Since(startTime).Milliseconds()
	}))

	for _, name := range relayMetrics {
		su.RegisterMetric(name)
	}
}

func (su *StatsUpdater) updateMetrics() {
	for req := range su.updateChan {
		metric := su.vars.Get(req.name)
		if metric == nil {
			panic("metric not found: " + req.name)
		}

		metric.(*expvar.Int).Add(int64(req.value))
	}
}

func (su *StatsUpdater) Incr(name string) {
	su.updateChan <- &metricsUpdateReq{name: name, value: 1}
}

func (su *StatsUpdater) Decr(name string) {
	su.updateChan <- &metricsUpdateReq{name: name, value: -1}
}

func (su *StatsUpdater) Add(name string, delta int) {
	su.updateChan <- &metricsUpdateReq{name: name, value: delta}
}

func (su *StatsUpdater) RegisterMetric(name string) {
	// an unpublished Int: expvar.NewInt would publish the name globally
	// and panic when a second updater registers it
	su.vars.Set(name, new(expvar.Int))
}

func (su *StatsUpdater) Run() {
	go su.updateMetrics()
}

func (su *StatsUpdater) Stop() {
	close(su.updateChan)
}
