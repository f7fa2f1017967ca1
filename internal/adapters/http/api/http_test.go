package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/tierlist/internal/adapters/http/api"
	"github.com/okian/tierlist/internal/adapters/mq/queue"
	"github.com/okian/tierlist/internal/adapters/repository"
	"github.com/okian/tierlist/internal/app"
	"github.com/okian/tierlist/internal/domain/model"
	"github.com/okian/tierlist/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

type enqueued struct {
	mode    model.RefreshMode
	trigger model.Trigger
}

// mockDependencies implements api.Dependencies in memory.
type mockDependencies struct {
	latest     map[model.Mode]*model.SnapshotView
	snapshots  []model.Snapshot
	enqueueErr error
	enqueued   []enqueued
	runs       []model.JobRun
	logsLimit  int
	config     json.RawMessage
	issues     []string
	readErr    error
}

func newMockDependencies() *mockDependencies {
	return &mockDependencies{
		latest: map[model.Mode]*model.SnapshotView{},
		config: json.RawMessage(`{"tiers":[]}`),
	}
}

func (m *mockDependencies) LatestSnapshot(_ context.Context, mode model.Mode) (*model.SnapshotView, error) {
	return m.latest[mode], m.readErr
}

func (m *mockDependencies) Snapshot(_ context.Context, id string) (model.SnapshotView, error) {
	for _, v := range m.latest {
		if v != nil && v.ID == id {
			return *v, nil
		}
	}
	return model.SnapshotView{}, repository.ErrNotFound
}

func (m *mockDependencies) Snapshots(_ context.Context, mode *model.Mode, limit int) ([]model.Snapshot, error) {
	var out []model.Snapshot
	for _, s := range m.snapshots {
		if (mode == nil || s.Mode == *mode) && len(out) < limit {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockDependencies) EnqueueRefresh(_ context.Context, mode model.RefreshMode, trigger model.Trigger) (queue.Job, error) {
	if m.enqueueErr != nil {
		return queue.Job{}, m.enqueueErr
	}
	m.enqueued = append(m.enqueued, enqueued{mode, trigger})
	return queue.NewJob(mode, trigger, time.UnixMilli(1700000000000)), nil
}

func (m *mockDependencies) JobRuns(_ context.Context, limit int) ([]model.JobRun, error) {
	m.logsLimit = limit
	return m.runs, nil
}

func (m *mockDependencies) AppConfig(context.Context) (json.RawMessage, error) {
	return m.config, nil
}

func (m *mockDependencies) UpdateAppConfig(_ context.Context, raw []byte) (model.AppConfig, []string, error) {
	if len(m.issues) > 0 {
		return model.AppConfig{}, m.issues, model.ErrInvalidAppConfig
	}
	m.config = raw
	return model.DefaultAppConfig(), nil, nil
}

func (m *mockDependencies) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true}
}

func serve(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := newMockDependencies()
		mux := http.NewServeMux()
		api.NewServer(deps).Register(context.Background(), mux)

		Convey("Then health, stats and metrics respond", func() {
			So(serve(mux, http.MethodGet, "/healthz", "").Code, ShouldEqual, http.StatusOK)
			So(decode(serve(mux, http.MethodGet, "/stats", ""))["started"], ShouldEqual, true)
			w := serve(mux, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then a wrong method is rejected", func() {
			w := serve(mux, http.MethodDelete, "/api/tier", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			So(w.Header().Get("Allow"), ShouldEqual, http.MethodGet)
		})
	})
}

func TestTierEndpoints(t *testing.T) {
	Convey("Given tier endpoints", t, func() {
		deps := newMockDependencies()
		mux := http.NewServeMux()
		api.NewServer(deps).Register(context.Background(), mux)

		Convey("When no snapshot exists", func() {
			body := decode(serve(mux, http.MethodGet, "/api/tier", ""))

			Convey("Then the dungeon mode is reported with a message", func() {
				So(body["mode"], ShouldEqual, "MYTHIC_PLUS")
				So(body["snapshot"], ShouldBeNil)
				So(body["message"], ShouldEqual, "No snapshots available yet")
			})
		})

		Convey("When a raid snapshot exists", func() {
			deps.latest[model.ModeRaid] = &model.SnapshotView{
				Snapshot: model.Snapshot{ID: "snap-1", Mode: model.ModeRaid},
				Specs: []model.SpecView{{
					SpecScore: model.SpecScore{Role: model.RoleDPS, ClassName: "Mage", SpecName: "Fire", Rank: 1, Tier: model.TierAPlus},
					TierLabel: "A+",
				}},
			}
			w := serve(mux, http.MethodGet, "/api/tier?mode=raid", "")

			Convey("Then it is returned without a message", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["mode"], ShouldEqual, "RAID")
				So(body, ShouldNotContainKey, "message")
				snap := body["snapshot"].(map[string]any)
				So(snap["id"], ShouldEqual, "snap-1")
				spec := snap["specs"].([]any)[0].(map[string]any)
				So(spec["tierLabel"], ShouldEqual, "A+")
			})

			Convey("And it is addressable by id", func() {
				w := serve(mux, http.MethodGet, "/api/snapshots/snap-1", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(serve(mux, http.MethodGet, "/api/snapshots/nope", "").Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the mode is unknown", func() {
			w := serve(mux, http.MethodGet, "/api/tier?mode=PVP", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["code"], ShouldEqual, "bad_request")
		})

		Convey("When the store fails", func() {
			deps.readErr = errors.New("connection reset")
			So(serve(mux, http.MethodGet, "/api/tier", "").Code, ShouldEqual, http.StatusInternalServerError)
		})

		Convey("When listing snapshots", func() {
			deps.snapshots = []model.Snapshot{
				{ID: "b", Mode: model.ModeRaid},
				{ID: "a", Mode: model.ModeMythicPlus},
			}

			Convey("Then the mode filter and limit apply", func() {
				body := decode(serve(mux, http.MethodGet, "/api/snapshots?mode=RAID", ""))
				So(body["snapshots"], ShouldHaveLength, 1)
				body = decode(serve(mux, http.MethodGet, "/api/snapshots?limit=1", ""))
				So(body["snapshots"], ShouldHaveLength, 1)
			})

			Convey("Then an out of range limit is rejected", func() {
				So(serve(mux, http.MethodGet, "/api/snapshots?limit=0", "").Code, ShouldEqual, http.StatusBadRequest)
				So(serve(mux, http.MethodGet, "/api/snapshots?limit=x", "").Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestRefreshEndpoints(t *testing.T) {
	Convey("Given refresh endpoints", t, func() {
		deps := newMockDependencies()
		mux := http.NewServeMux()
		api.NewServer(deps).Register(context.Background(), mux)

		Convey("When posting a manual refresh without a body", func() {
			w := serve(mux, http.MethodPost, "/api/refresh", "")

			Convey("Then an ALL refresh is accepted", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				body := decode(w)
				So(body["ok"], ShouldEqual, true)
				So(body["mode"], ShouldEqual, "ALL")
				So(body["trigger"], ShouldEqual, "manual")
				So(body["jobId"], ShouldEqual, "manual-1700000000000")
			})
		})

		Convey("When posting a mode in the body", func() {
			w := serve(mux, http.MethodPost, "/api/refresh", `{"mode":"RAID"}`)
			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(deps.enqueued, ShouldResemble, []enqueued{{model.RefreshMode(model.ModeRaid), model.TriggerManual}})
		})

		Convey("When the cron endpoint is called with a query mode", func() {
			w := serve(mux, http.MethodGet, "/api/cron/refresh?mode=MYTHIC_PLUS", "")
			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(deps.enqueued[0].trigger, ShouldEqual, model.TriggerCron)
			So(deps.enqueued[0].mode, ShouldEqual, model.RefreshMode(model.ModeMythicPlus))
		})

		Convey("When the request is malformed", func() {
			So(serve(mux, http.MethodPost, "/api/refresh", `{"mode":`).Code, ShouldEqual, http.StatusBadRequest)
			So(serve(mux, http.MethodPost, "/api/refresh", `{"mode":"ARENA"}`).Code, ShouldEqual, http.StatusBadRequest)
			So(deps.enqueued, ShouldBeEmpty)
		})

		Convey("When the queue is full", func() {
			deps.enqueueErr = queue.ErrQueueFull
			So(serve(mux, http.MethodPost, "/api/refresh", "").Code, ShouldEqual, http.StatusTooManyRequests)
		})

		Convey("When the service is not running", func() {
			deps.enqueueErr = app.ErrServiceNotStarted
			So(serve(mux, http.MethodPost, "/api/refresh", "").Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

func TestAdminEndpoints(t *testing.T) {
	Convey("Given admin endpoints", t, func() {
		deps := newMockDependencies()
		mux := http.NewServeMux()
		api.NewServer(deps).Register(context.Background(), mux)

		Convey("When listing logs", func() {
			msg := "upstream down"
			deps.runs = []model.JobRun{{ID: "run-1", Status: model.JobFailed, Trigger: model.TriggerCron, ErrorMessage: &msg}}

			Convey("Then the service default limit is used", func() {
				body := decode(serve(mux, http.MethodGet, "/api/admin/logs", ""))
				So(deps.logsLimit, ShouldEqual, 0)
				logs := body["logs"].([]any)
				So(logs, ShouldHaveLength, 1)
				So(logs[0].(map[string]any)["errorMessage"], ShouldEqual, msg)
			})

			Convey("Then an explicit limit is passed through", func() {
				serve(mux, http.MethodGet, "/api/admin/logs?limit=5", "")
				So(deps.logsLimit, ShouldEqual, 5)
			})
		})

		Convey("When reading the config", func() {
			body := decode(serve(mux, http.MethodGet, "/api/admin/config", ""))
			So(body["config"], ShouldResemble, map[string]any{"tiers": []any{}})
		})

		Convey("When posting a config wrapped in an envelope", func() {
			w := serve(mux, http.MethodPost, "/api/admin/config", `{"config":{"tiers":[1]}}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(string(deps.config), ShouldEqual, `{"tiers":[1]}`)
		})

		Convey("When posting an invalid config", func() {
			deps.issues = []string{"raid.percentile failed \"min\""}
			w := serve(mux, http.MethodPost, "/api/admin/config", `{"raid":{"percentile":0.1}}`)

			Convey("Then the issues are listed", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				body := decode(w)
				So(body["ok"], ShouldEqual, false)
				So(body["errors"], ShouldHaveLength, 1)
			})
		})
	})
}
