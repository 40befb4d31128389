package main

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/km-arc/go-laravel-webprofiler/framework/app"
	"github.com/km-arc/go-laravel-webprofiler/framework/container"
	"github.com/km-arc/go-laravel-webprofiler/framework/dump"
	"github.com/km-arc/go-laravel-webprofiler/framework/form"
	gohttp "github.com/km-arc/go-laravel-webprofiler/framework/http"
	"github.com/km-arc/go-laravel-webprofiler/framework/http/validation"
	"github.com/km-arc/go-laravel-webprofiler/framework/providers"
	"github.com/km-arc/go-laravel-webprofiler/framework/routing"
	"github.com/km-arc/go-laravel-webprofiler/framework/security"
	"github.com/km-arc/go-laravel-webprofiler/framework/translation"
	"github.com/km-arc/go-laravel-webprofiler/webprofiler"
)

func main() {
	application := app.New() // loads .env automatically

	// Optional providers first, so the profiler finds their services.
	for _, p := range []container.ServiceProvider{
		&providers.ServiceControllerServiceProvider{},
		&providers.TranslationServiceProvider{
			Locale:    "fr",
			Fallbacks: []string{"en"},
			Messages: map[string]map[string]string{
				"en": {"hello": "Hello %name%!", "bye": "Goodbye"},
				"fr": {"hello": "Bonjour %name% !"},
			},
		},
		&providers.SecurityServiceProvider{
			Authenticator: bearerAuthenticator,
			Hierarchy:     map[string][]string{"ROLE_ADMIN": {"ROLE_USER"}},
		},
		&providers.FormServiceProvider{},
		&providers.VarDumperServiceProvider{},
	} {
		must(application.Register(p))
	}

	cfg := application.Config()
	if cfg.Profiler.Enabled {
		must(application.Register(webprofiler.NewServiceProvider(), cfg.Profiler.Values()))
	}

	r := application.Router()

	// ── Basic routes ─────────────────────────────────────────────────────────

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		res := gohttp.NewResponse(w)
		res.HTML(http.StatusOK, `<!DOCTYPE html><html><head><title>Go-Laravel</title></head>`+
			`<body><h1>Welcome to Go-Laravel!</h1><a href="/hello/world">say hello</a></body></html>`)
	})

	r.Get("/hello/{name}", func(w http.ResponseWriter, req *http.Request) {
		t := container.Resolve[translation.Translator](application.Container, "translator")
		msg := t.Trans("hello", map[string]string{"%name%": routing.Param(req, "name")}, "", "")
		dump.Dump(map[string]string{"greeting": msg})

		res := gohttp.NewResponse(w)
		res.HTML(http.StatusOK, "<html><body><p>"+html.EscapeString(msg)+"</p><p>"+t.Trans("bye", nil, "", "")+"</p></body></html>")
	})

	// ── Route prefix (like Route::prefix('api')) ──────────────────────────────

	r.Prefix("/api/v1", func(api *routing.Router) {

		// GET /api/v1/users
		api.Get("/users", func(w http.ResponseWriter, req *http.Request) {
			res := gohttp.NewResponse(w)
			res.Success([]map[string]any{
				{"id": 1, "name": "Alice"},
				{"id": 2, "name": "Bob"},
			})
		})

		// POST /api/v1/users
		api.Post("/users", func(w http.ResponseWriter, req *http.Request) {
			request := gohttp.NewRequest(req)
			res := gohttp.NewResponse(w)

			var body struct {
				Name  string `json:"name"`
				Email string `json:"email"`
				Age   string `json:"age"`
			}
			if err := request.Bind(&body); err != nil {
				res.Error(http.StatusBadRequest, err.Error())
				return
			}

			v := validation.Make(map[string]string{
				"name":  body.Name,
				"email": body.Email,
				"age":   body.Age,
			}, validation.Rules{
				"name":  "required|min:2|max:100",
				"email": "required|email",
				"age":   "required|numeric|gte:18",
			})

			if v.Fails() {
				res.ValidationError(v.Errors())
				return
			}

			res.Created(map[string]any{
				"name":  body.Name,
				"email": body.Email,
			})
		})

		// GET /api/v1/users/{id}
		api.Get("/users/{id}", func(w http.ResponseWriter, req *http.Request) {
			res := gohttp.NewResponse(w)
			id := routing.Param(req, "id")
			res.Success(map[string]any{"id": id})
		})
	})

	// POST /subscribe runs the submitted email through a form.
	r.Post("/subscribe", func(w http.ResponseWriter, req *http.Request) {
		res := gohttp.NewResponse(w)
		factory := container.Resolve[*form.Factory](application.Container, "form.factory")
		f, err := factory.CreateBuilder("form", "subscribe", nil).
			Add("email", "email", form.Options{"required": true}).
			Form()
		if err != nil {
			res.ServerError(err.Error())
			return
		}
		f.Submit(gohttp.NewRequest(req).All())
		if !f.IsValid() {
			res.Error(http.StatusUnprocessableEntity, fmt.Sprint(f.Child("email").Errors()))
			return
		}
		res.Created(f.Data())
	})

	// ── Auth group with middleware ─────────────────────────────────────────────

	r.Group(func(protected *routing.Router) {
		protected.Middleware(AuthMiddleware(application))

		protected.Get("/profile", func(w http.ResponseWriter, req *http.Request) {
			res := gohttp.NewResponse(w)
			token := container.Resolve[*security.TokenStorage](application.Container, "security.token_storage").Token(req)
			res.Success(map[string]any{"user": token.User, "roles": token.Roles})
		})
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := application.Run(ctx); err != nil {
		application.Logger().Error("application stopped", "error", err)
		os.Exit(1)
	}
}

// bearerAuthenticator accepts any bearer token; "admin" gets ROLE_ADMIN.
func bearerAuthenticator(r *http.Request) *security.Token {
	bearer := gohttp.NewRequest(r).BearerToken()
	if bearer == "" {
		return nil
	}
	role := "ROLE_USER"
	if bearer == "admin" {
		role = "ROLE_ADMIN"
	}
	return &security.Token{User: bearer, Roles: []string{role}, Authenticated: true}
}

// AuthMiddleware rejects requests the security middleware did not
// authenticate.
func AuthMiddleware(a *app.Application) func(http.Handler) http.Handler {
	tokens := container.Resolve[*security.TokenStorage](a.Container, "security.token_storage")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if t := tokens.Token(r); t == nil || !t.Authenticated {
				gohttp.NewResponse(w).Unauthorized()
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func must(err error) {
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
}
