package web_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"MiniShop/internal/auth"
	"MiniShop/internal/cart"
	"MiniShop/internal/catalog"
	"MiniShop/internal/web"
)

type shop struct {
	ts  *httptest.Server
	reg *prometheus.Registry

	mu    sync.Mutex
	links []string
}

func (s *shop) lastLink(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.links) == 0 {
		t.Fatalf("no verification link issued")
	}
	return s.links[len(s.links)-1]
}

func newShop(t *testing.T) *shop {
	t.Helper()

	pages, err := web.NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	s := &shop{reg: prometheus.NewRegistry()}
	a := &web.App{
		Log: zap.NewNop(),
		Auth: &auth.Service{
			Store: auth.NewMemStore(),
			JWT:   auth.NewTokenMaker("test-secret-test-secret-test-secret"),
			Log:   zap.NewNop(),
		},
		Catalog: catalog.Default(),
		Carts:   cart.NewSessions(time.Hour),
		Pages:   pages,
		OnVerificationLink: func(_ auth.User, path string) {
			s.mu.Lock()
			s.links = append(s.links, path)
			s.mu.Unlock()
		},
	}

	h := web.NewHandler(a, web.HTTPDeps{Log: zap.NewNop(), Service: "shop", Registry: s.reg})
	s.ts = httptest.NewServer(h)
	t.Cleanup(s.ts.Close)
	return s
}

// newBrowser keeps cookies and reports redirects instead of following them.
func newBrowser(t *testing.T) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func get(t *testing.T, c *http.Client, u string) (*http.Response, string) {
	t.Helper()

	resp, err := c.Get(u)
	if err != nil {
		t.Fatalf("GET %s: %v", u, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return resp, string(raw)
}

func postForm(t *testing.T, c *http.Client, u string, form url.Values) (*http.Response, string) {
	t.Helper()

	resp, err := c.PostForm(u, form)
	if err != nil {
		t.Fatalf("POST %s: %v", u, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return resp, string(raw)
}

func expectRedirect(t *testing.T, resp *http.Response, status int, location string) {
	t.Helper()

	if resp.StatusCode != status {
		t.Fatalf("%s %s: status=%d want=%d", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, status)
	}
	if got := resp.Header.Get("Location"); got != location {
		t.Fatalf("%s %s: location=%q want=%q", resp.Request.Method, resp.Request.URL.Path, got, location)
	}
}

// verifiedBrowser registers a fresh account and follows its verification link.
func verifiedBrowser(t *testing.T, s *shop) *http.Client {
	t.Helper()
	return verifiedBrowserAs(t, s, "shopper@example.com")
}

func verifiedBrowserAs(t *testing.T, s *shop, email string) *http.Client {
	t.Helper()

	c := newBrowser(t)
	resp, _ := postForm(t, c, s.ts.URL+"/register", url.Values{
		"email":    {email},
		"password": {"password123"},
	})
	expectRedirect(t, resp, http.StatusSeeOther, "/verify-email")

	resp, _ = get(t, c, s.ts.URL+s.lastLink(t))
	expectRedirect(t, resp, http.StatusSeeOther, "/dashboard?verified=1")
	return c
}

func TestGate_UnauthenticatedRedirectsToLogin(t *testing.T) {
	s := newShop(t)
	c := newBrowser(t)

	resp, _ := get(t, c, s.ts.URL+"/products")
	expectRedirect(t, resp, http.StatusFound, "/login?next=%2Fproducts")

	resp, _ = get(t, c, s.ts.URL+"/dashboard")
	expectRedirect(t, resp, http.StatusFound, "/login?next=%2Fdashboard")

	resp, _ = postForm(t, c, s.ts.URL+"/products/cart/p1/add", nil)
	expectRedirect(t, resp, http.StatusFound, "/login")
}

func TestGate_UnverifiedRedirectsToVerification(t *testing.T) {
	s := newShop(t)
	c := newBrowser(t)

	resp, _ := postForm(t, c, s.ts.URL+"/register", url.Values{
		"email":    {"new@example.com"},
		"password": {"password123"},
	})
	expectRedirect(t, resp, http.StatusSeeOther, "/verify-email")

	resp, _ = get(t, c, s.ts.URL+"/products")
	expectRedirect(t, resp, http.StatusFound, "/verify-email")

	resp, _ = get(t, c, s.ts.URL+"/dashboard")
	expectRedirect(t, resp, http.StatusFound, "/verify-email")

	resp, body := get(t, c, s.ts.URL+"/verify-email")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Verify your email") {
		t.Fatalf("notice status=%d body=%s", resp.StatusCode, body)
	}
}

func TestHome(t *testing.T) {
	s := newShop(t)

	anon := newBrowser(t)
	resp, body := get(t, anon, s.ts.URL+"/")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Welcome") {
		t.Fatalf("welcome status=%d", resp.StatusCode)
	}

	c := verifiedBrowser(t, s)
	resp, _ = get(t, c, s.ts.URL+"/")
	expectRedirect(t, resp, http.StatusFound, "/products")
}

func TestProducts_CartFlow(t *testing.T) {
	s := newShop(t)
	c := verifiedBrowser(t, s)

	resp, body := get(t, c, s.ts.URL+"/products")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("products status=%d", resp.StatusCode)
	}
	for _, want := range []string{"Apple", "Banana", "Orange", "Mango", "$1.25", `data-total="0.00"`, `href="/products">Products</a>`} {
		if !strings.Contains(body, want) {
			t.Fatalf("products page missing %q", want)
		}
	}

	for _, id := range []string{"p1", "p1", "p2"} {
		resp, _ = postForm(t, c, s.ts.URL+"/products/cart/"+id+"/add", nil)
		expectRedirect(t, resp, http.StatusSeeOther, "/products")
	}

	_, body = get(t, c, s.ts.URL+"/products")
	if !strings.Contains(body, `data-total="3.25"`) {
		t.Fatalf("expected total 3.25 in page")
	}

	got := cartState(t, c, s.ts.URL)
	if got.Total != "3.25" || got.Items["p1"] != 2 || got.Items["p2"] != 1 || len(got.Items) != 2 {
		t.Fatalf("cart=%+v", got)
	}

	postForm(t, c, s.ts.URL+"/products/cart/p2/remove", nil)
	got = cartState(t, c, s.ts.URL)
	if _, present := got.Items["p2"]; present {
		t.Fatalf("p2 should be gone: %+v", got)
	}
	if got.Total != "2.50" {
		t.Fatalf("total=%s", got.Total)
	}

	postForm(t, c, s.ts.URL+"/products/cart/p4/remove", nil)
	if after := cartState(t, c, s.ts.URL); after.Total != "2.50" || len(after.Items) != 1 {
		t.Fatalf("remove on absent id changed cart: %+v", after)
	}
}

func TestCartAPI_UnknownProduct(t *testing.T) {
	s := newShop(t)
	c := verifiedBrowser(t, s)

	resp, err := c.Post(s.ts.URL+"/api/cart/unknown-id/add", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var got cartBody
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Items["unknown-id"] != 1 || got.Total != "0.00" {
		t.Fatalf("cart=%+v", got)
	}
}

func TestCartAPI_RequiresVerifiedSession(t *testing.T) {
	s := newShop(t)

	resp, _ := get(t, newBrowser(t), s.ts.URL+"/api/cart")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}

func TestCart_SessionsAreIsolated(t *testing.T) {
	s := newShop(t)
	first := verifiedBrowser(t, s)

	postForm(t, first, s.ts.URL+"/products/cart/p3/add", nil)

	second := newBrowser(t)
	resp, _ := postForm(t, second, s.ts.URL+"/login", url.Values{
		"email":    {"shopper@example.com"},
		"password": {"password123"},
	})
	expectRedirect(t, resp, http.StatusSeeOther, "/dashboard")

	if got := cartState(t, second, s.ts.URL); len(got.Items) != 0 || got.Total != "0.00" {
		t.Fatalf("new page session should start empty: %+v", got)
	}
	if got := cartState(t, first, s.ts.URL); got.Items["p3"] != 1 {
		t.Fatalf("first session lost its cart: %+v", got)
	}
}

func TestLogin_BadCredentialsRerendersForm(t *testing.T) {
	s := newShop(t)

	resp, body := postForm(t, newBrowser(t), s.ts.URL+"/login", url.Values{
		"email":    {"nobody@example.com"},
		"password": {"password123"},
	})
	if resp.StatusCode != http.StatusUnprocessableEntity || !strings.Contains(body, "do not match") {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}

func TestLogin_RedirectsToNext(t *testing.T) {
	s := newShop(t)
	verifiedBrowser(t, s)

	resp, _ := postForm(t, newBrowser(t), s.ts.URL+"/login", url.Values{
		"email":    {"shopper@example.com"},
		"password": {"password123"},
		"next":     {"/products"},
	})
	expectRedirect(t, resp, http.StatusSeeOther, "/products")

	resp, _ = postForm(t, newBrowser(t), s.ts.URL+"/login", url.Values{
		"email":    {"shopper@example.com"},
		"password": {"password123"},
		"next":     {"//evil.example.com"},
	})
	expectRedirect(t, resp, http.StatusSeeOther, "/dashboard")
}

func TestConfirmEmail_BadToken(t *testing.T) {
	s := newShop(t)

	resp, _ := get(t, newBrowser(t), s.ts.URL+"/verify-email/not-a-token")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}

func TestLogout_DropsSession(t *testing.T) {
	s := newShop(t)
	c := verifiedBrowser(t, s)
	postForm(t, c, s.ts.URL+"/products/cart/p1/add", nil)

	resp, _ := postForm(t, c, s.ts.URL+"/logout", nil)
	expectRedirect(t, resp, http.StatusSeeOther, "/")

	var cleared *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == "cart_session" {
			cleared = ck
		}
	}
	if cleared == nil || cleared.MaxAge >= 0 || !cleared.HttpOnly || cleared.SameSite != http.SameSiteLaxMode {
		t.Fatalf("cart cookie not expired with session attributes: %+v", cleared)
	}

	resp, _ = get(t, c, s.ts.URL+"/products")
	expectRedirect(t, resp, http.StatusFound, "/login?next=%2Fproducts")

	login(t, s, c, "shopper@example.com")
	if got := cartState(t, c, s.ts.URL); len(got.Items) != 0 || got.Total != "0.00" {
		t.Fatalf("cart survived logout: %+v", got)
	}
}

func TestCart_NotInheritedByNextAccount(t *testing.T) {
	s := newShop(t)
	verifiedBrowserAs(t, s, "other@example.com")

	c := verifiedBrowser(t, s)
	postForm(t, c, s.ts.URL+"/products/cart/p4/add", nil)

	// The session expires; the browser still holds its cart cookie.
	base, _ := url.Parse(s.ts.URL)
	c.Jar.SetCookies(base, []*http.Cookie{{Name: "session", Value: "", Path: "/", MaxAge: -1}})

	login(t, s, c, "other@example.com")
	if got := cartState(t, c, s.ts.URL); len(got.Items) != 0 || got.Total != "0.00" {
		t.Fatalf("cart of shopper@example.com visible to other@example.com: %+v", got)
	}
}

func TestCart_BearerOfAnotherAccountGetsOwnCart(t *testing.T) {
	s := newShop(t)
	verifiedBrowserAs(t, s, "other@example.com")

	c := verifiedBrowser(t, s)
	postForm(t, c, s.ts.URL+"/products/cart/p4/add", nil)

	resp, err := http.Post(s.ts.URL+"/auth/login", "application/json",
		strings.NewReader(`{"email":"other@example.com","password":"password123"}`))
	if err != nil {
		t.Fatalf("api login: %v", err)
	}
	defer resp.Body.Close()
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil || tok.AccessToken == "" {
		t.Fatalf("api login status=%d err=%v", resp.StatusCode, err)
	}

	req, _ := http.NewRequest(http.MethodGet, s.ts.URL+"/api/cart", nil)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	resp2, err := c.Do(req)
	if err != nil {
		t.Fatalf("cart: %v", err)
	}
	defer resp2.Body.Close()

	var got cartBody
	if err := json.NewDecoder(resp2.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Items) != 0 {
		t.Fatalf("bearer of other@example.com saw %+v", got)
	}
}

func TestCartMetrics_CountOnlyChanges(t *testing.T) {
	s := newShop(t)
	c := verifiedBrowser(t, s)

	for _, step := range []string{"p1/add", "p2/remove", "p1/remove", "p1/remove"} {
		postForm(t, c, s.ts.URL+"/products/cart/"+step, nil)
	}

	want := `
# HELP cart_mutations_total Cart add/remove operations that changed a cart
# TYPE cart_mutations_total counter
cart_mutations_total{op="add"} 1
cart_mutations_total{op="remove"} 1
`
	if err := testutil.GatherAndCompare(s.reg, strings.NewReader(want), "cart_mutations_total"); err != nil {
		t.Fatalf("metrics: %v", err)
	}
}

func login(t *testing.T, s *shop, c *http.Client, email string) {
	t.Helper()

	resp, _ := postForm(t, c, s.ts.URL+"/login", url.Values{
		"email":    {email},
		"password": {"password123"},
	})
	expectRedirect(t, resp, http.StatusSeeOther, "/dashboard")
}

type cartBody struct {
	Items map[string]int `json:"items"`
	Total string         `json:"total"`
}

func cartState(t *testing.T, c *http.Client, base string) cartBody {
	t.Helper()

	resp, raw := get(t, c, base+"/api/cart")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cart status=%d body=%s", resp.StatusCode, raw)
	}
	var got cartBody
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("decode cart: %v body=%s", err, raw)
	}
	return got
}
