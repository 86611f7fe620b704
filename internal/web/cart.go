package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"MiniShop/internal/cart"
	"MiniShop/pkg/kit"
)

const (
	opAdd    = "add"
	opRemove = "remove"
)

type cartMetrics struct {
	mutations *prometheus.CounterVec
}

func newCartMetrics(reg prometheus.Registerer, sessions *cart.Sessions) *cartMetrics {
	m := &cartMetrics{
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cart_mutations_total",
				Help: "Cart add/remove operations that changed a cart",
			},
			[]string{"op"},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.mutations,
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "cart_sessions",
				Help: "Live cart sessions",
			}, func() float64 { return float64(sessions.Len()) }),
		)
	}
	return m
}

// updateCart runs fn against the cart of the request's page session. The cart
// belongs to the logged-in user; a different user on the same browser gets a
// fresh one.
func (a *App) updateCart(r *http.Request, fn func(c *cart.Cart)) {
	claims, _ := ClaimsFromContext(r.Context())
	a.Carts.Update(cartKeyFromContext(r.Context()), claims.UserID, fn)
}

func (a *App) mutate(r *http.Request, op string) {
	id := chi.URLParam(r, "id")

	changed := false
	a.updateCart(r, func(c *cart.Cart) {
		switch op {
		case opAdd:
			c.Add(id)
			changed = true
		case opRemove:
			changed = c.Qty(id) > 0
			c.Remove(id)
		}
	})
	if changed {
		a.metrics.mutations.WithLabelValues(op).Inc()
	}

	a.Log.Debug("cart mutation",
		zap.String("op", op),
		zap.String("product_id", id),
		zap.Bool("changed", changed),
		zap.String("request_id", requestID(r)),
	)
}

func (a *App) cartFormHandler(op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.mutate(r, op)
		http.Redirect(w, r, URL(RouteProducts), http.StatusSeeOther)
	}
}

type cartResp struct {
	Items map[string]int `json:"items"`
	Total string         `json:"total"`
}

func (a *App) snapshot(r *http.Request) cartResp {
	var resp cartResp
	a.updateCart(r, func(c *cart.Cart) {
		resp.Items = c.Items()
		resp.Total = cart.FormatMoney(c.Total(a.Catalog))
	})
	return resp
}

func (a *App) cartJSON(w http.ResponseWriter, r *http.Request) {
	kit.WriteJSON(w, http.StatusOK, a.snapshot(r))
}

func (a *App) cartAPIHandler(op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.mutate(r, op)
		kit.WriteJSON(w, http.StatusOK, a.snapshot(r))
	}
}
