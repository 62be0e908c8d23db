package subscriptions

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subsavvy/subsavvy/internal/billing"
	domain "github.com/subsavvy/subsavvy/internal/domain/subscription"
	"github.com/subsavvy/subsavvy/internal/lib/civil"
	service "github.com/subsavvy/subsavvy/internal/services/subscriptions"
)

type fakeRepo struct {
	subs []domain.Subscription
	seq  int
}

func (f *fakeRepo) CreateSubscription(_ context.Context, sub domain.Subscription) (domain.Subscription, error) {
	f.seq++
	sub.ID = uuid.New()
	sub.CreatedAt = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(f.seq) * time.Second)
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (f *fakeRepo) GetSubscription(_ context.Context, id uuid.UUID) (domain.Subscription, error) {
	for _, sub := range f.subs {
		if sub.ID == id {
			return sub, nil
		}
	}
	return domain.Subscription{}, domain.ErrNotFound
}

func (f *fakeRepo) UpdateSubscription(_ context.Context, id uuid.UUID, input domain.UpdateInput) (domain.Subscription, error) {
	for i, sub := range f.subs {
		if sub.ID != id {
			continue
		}
		sub.Name = input.Name
		sub.Cost = input.Cost
		sub.Category = input.Category
		sub.BillingCycle = input.BillingCycle
		sub.NextPayment = input.NextPayment
		sub.Notes = input.Notes
		f.subs[i] = sub
		return sub, nil
	}
	return domain.Subscription{}, domain.ErrNotFound
}

func (f *fakeRepo) DeleteSubscription(_ context.Context, id uuid.UUID) error {
	for i, sub := range f.subs {
		if sub.ID == id {
			f.subs = append(f.subs[:i], f.subs[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeRepo) ListSubscriptions(_ context.Context, filter domain.ListFilter) ([]domain.Subscription, error) {
	var out []domain.Subscription
	for _, sub := range f.subs {
		if filter.DueBefore != nil && sub.NextPayment.After(*filter.DueBefore) {
			continue
		}
		out = append(out, sub)
	}
	return out, nil
}

func (f *fakeRepo) MarkPaid(_ context.Context, id uuid.UUID, advance func(domain.Subscription) (civil.Date, error)) (domain.Subscription, error) {
	for i, sub := range f.subs {
		if sub.ID != id {
			continue
		}
		next, err := advance(sub)
		if err != nil {
			return domain.Subscription{}, err
		}
		sub.NextPayment = next
		f.subs[i] = sub
		return sub, nil
	}
	return domain.Subscription{}, domain.ErrNotFound
}

func newTestServer() (*http.ServeMux, *fakeRepo) {
	repo := &fakeRepo{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := New(service.New(repo, log), log)

	mux := http.NewServeMux()
	handler.Register(mux)
	return mux, repo
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeSubscription(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHandler_Create(t *testing.T) {
	t.Run("schedules the first payment and returns 201", func(t *testing.T) {
		mux, _ := newTestServer()

		rec := doJSON(t, mux, http.MethodPost, "/api/v1/subscriptions",
			`{"name":"Netflix","cost":15.99,"category":"Entertainment","billing_cycle":"monthly","first_payment_date":"2024-01-31","notes":"family plan"}`)

		require.Equal(t, http.StatusCreated, rec.Code)

		body := decodeSubscription(t, rec)
		assert.Equal(t, "Netflix", body["name"])
		assert.Equal(t, "2024-02-29", body["next_payment"])
		assert.Equal(t, "Entertainment", body["category"])
		assert.Equal(t, "monthly", body["billing_cycle"])
		assert.NotEmpty(t, body["id"])
	})

	t.Run("rejects an unknown category", func(t *testing.T) {
		mux, repo := newTestServer()

		rec := doJSON(t, mux, http.MethodPost, "/api/v1/subscriptions",
			`{"name":"Netflix","cost":15.99,"category":"Pets","billing_cycle":"monthly","first_payment_date":"2024-01-31"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, repo.subs)
	})

	t.Run("rejects a malformed date", func(t *testing.T) {
		mux, _ := newTestServer()

		rec := doJSON(t, mux, http.MethodPost, "/api/v1/subscriptions",
			`{"name":"Netflix","cost":15.99,"category":"Entertainment","billing_cycle":"monthly","first_payment_date":"31/01/2024"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects an unknown cycle", func(t *testing.T) {
		mux, _ := newTestServer()

		rec := doJSON(t, mux, http.MethodPost, "/api/v1/subscriptions",
			`{"name":"Netflix","cost":15.99,"category":"Entertainment","billing_cycle":"weekly","first_payment_date":"2024-01-31"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects a negative cost", func(t *testing.T) {
		mux, _ := newTestServer()

		rec := doJSON(t, mux, http.MethodPost, "/api/v1/subscriptions",
			`{"name":"Netflix","cost":-1,"category":"Entertainment","billing_cycle":"monthly","first_payment_date":"2024-01-31"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_GetAndDelete(t *testing.T) {
	mux, repo := newTestServer()

	created, err := repo.CreateSubscription(context.Background(), domain.Subscription{
		Name:         "Spotify",
		Cost:         decimal.RequireFromString("9.99"),
		Category:     domain.CategoryEntertainment,
		BillingCycle: billing.CycleMonthly,
		NextPayment:  civil.Date{Year: 2024, Month: time.July, Day: 1},
	})
	require.NoError(t, err)

	t.Run("get returns the record", func(t *testing.T) {
		rec := doJSON(t, mux, http.MethodGet, "/api/v1/subscriptions/"+created.ID.String(), "")
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeSubscription(t, rec)
		assert.Equal(t, "Spotify", body["name"])
		assert.Equal(t, "2024-07-01", body["next_payment"])
	})

	t.Run("get unknown id is 404", func(t *testing.T) {
		rec := doJSON(t, mux, http.MethodGet, "/api/v1/subscriptions/"+uuid.NewString(), "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("get malformed id is 400", func(t *testing.T) {
		rec := doJSON(t, mux, http.MethodGet, "/api/v1/subscriptions/not-a-uuid", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("delete removes the record", func(t *testing.T) {
		rec := doJSON(t, mux, http.MethodDelete, "/api/v1/subscriptions/"+created.ID.String(), "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, repo.subs)
	})
}

func TestHandler_Update(t *testing.T) {
	t.Run("cycle change recomputes from the stored due date", func(t *testing.T) {
		mux, repo := newTestServer()

		created, err := repo.CreateSubscription(context.Background(), domain.Subscription{
			Name:         "Dropbox",
			Cost:         decimal.RequireFromString("11.99"),
			Category:     domain.CategoryCloud,
			BillingCycle: billing.CycleMonthly,
			NextPayment:  civil.Date{Year: 2024, Month: time.March, Day: 15},
		})
		require.NoError(t, err)

		rec := doJSON(t, mux, http.MethodPut, "/api/v1/subscriptions/"+created.ID.String(),
			`{"name":"Dropbox","cost":119.88,"category":"Cloud & Storage","billing_cycle":"yearly","next_payment":"2030-12-25"}`)

		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeSubscription(t, rec)
		assert.Equal(t, "yearly", body["billing_cycle"])
		assert.Equal(t, "2025-03-15", body["next_payment"])
	})

	t.Run("same cycle takes the submitted date", func(t *testing.T) {
		mux, repo := newTestServer()

		created, err := repo.CreateSubscription(context.Background(), domain.Subscription{
			Name:         "Dropbox",
			Cost:         decimal.RequireFromString("11.99"),
			Category:     domain.CategoryCloud,
			BillingCycle: billing.CycleMonthly,
			NextPayment:  civil.Date{Year: 2024, Month: time.March, Day: 15},
		})
		require.NoError(t, err)

		rec := doJSON(t, mux, http.MethodPut, "/api/v1/subscriptions/"+created.ID.String(),
			`{"name":"Dropbox","cost":11.99,"category":"Cloud & Storage","billing_cycle":"monthly","next_payment":"2024-09-01"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2024-09-01", decodeSubscription(t, rec)["next_payment"])
	})
}

func TestHandler_MarkPaid(t *testing.T) {
	seed := func(t *testing.T, repo *fakeRepo, due civil.Date) domain.Subscription {
		t.Helper()
		created, err := repo.CreateSubscription(context.Background(), domain.Subscription{
			Name:         "Gym",
			Cost:         decimal.RequireFromString("30"),
			Category:     domain.CategoryFitness,
			BillingCycle: billing.CycleMonthly,
			NextPayment:  due,
		})
		require.NoError(t, err)
		return created
	}

	t.Run("due today advances one cycle", func(t *testing.T) {
		mux, repo := newTestServer()
		today := civil.Today()
		created := seed(t, repo, today)

		rec := doJSON(t, mux, http.MethodPost, "/api/v1/subscriptions/"+created.ID.String()+"/pay", "")
		require.Equal(t, http.StatusOK, rec.Code)

		assert.Equal(t, today.AddMonths(1).String(), decodeSubscription(t, rec)["next_payment"])
	})

	t.Run("future due date is a conflict", func(t *testing.T) {
		mux, repo := newTestServer()
		created := seed(t, repo, civil.Today().AddDays(5))

		rec := doJSON(t, mux, http.MethodPost, "/api/v1/subscriptions/"+created.ID.String()+"/pay", "")
		assert.Equal(t, http.StatusConflict, rec.Code)

		stored, err := repo.GetSubscription(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.NextPayment, stored.NextPayment)
	})

	t.Run("pay requires POST", func(t *testing.T) {
		mux, repo := newTestServer()
		created := seed(t, repo, civil.Today())

		rec := doJSON(t, mux, http.MethodGet, "/api/v1/subscriptions/"+created.ID.String()+"/pay", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestHandler_List(t *testing.T) {
	mux, repo := newTestServer()

	for _, name := range []string{"a", "b"} {
		_, err := repo.CreateSubscription(context.Background(), domain.Subscription{
			Name:         name,
			Cost:         decimal.RequireFromString("5"),
			Category:     domain.CategoryOthers,
			BillingCycle: billing.CycleMonthly,
			NextPayment:  civil.Date{Year: 2024, Month: time.July, Day: 1},
		})
		require.NoError(t, err)
	}

	t.Run("returns all records", func(t *testing.T) {
		rec := doJSON(t, mux, http.MethodGet, "/api/v1/subscriptions", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var out []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		assert.Len(t, out, 2)
	})

	t.Run("rejects a bad filter", func(t *testing.T) {
		rec := doJSON(t, mux, http.MethodGet, "/api/v1/subscriptions?billing_cycle=weekly", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_Reminders(t *testing.T) {
	t.Run("classifies due subscriptions", func(t *testing.T) {
		mux, repo := newTestServer()
		today := civil.Today()

		_, err := repo.CreateSubscription(context.Background(), domain.Subscription{
			Name:         "due today",
			Cost:         decimal.RequireFromString("5"),
			Category:     domain.CategoryOthers,
			BillingCycle: billing.CycleMonthly,
			NextPayment:  today,
		})
		require.NoError(t, err)

		rec := doJSON(t, mux, http.MethodGet, "/api/v1/reminders", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var out []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		require.Len(t, out, 1)

		assert.Equal(t, "due_today", out[0]["status"])
		assert.Equal(t, "Due Today", out[0]["status_label"])
		assert.Equal(t, float64(0), out[0]["days_until_due"])
		assert.Equal(t, true, out[0]["can_mark_paid_now"])
	})

	t.Run("rejects a non-numeric horizon", func(t *testing.T) {
		mux, _ := newTestServer()

		rec := doJSON(t, mux, http.MethodGet, "/api/v1/reminders?days=soon", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("reminders require GET", func(t *testing.T) {
		mux, _ := newTestServer()

		rec := doJSON(t, mux, http.MethodPost, "/api/v1/reminders", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}
