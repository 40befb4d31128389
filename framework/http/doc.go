// Package http provides the request and response helpers controllers use,
// and the template engine the profiler pages render with.
//
// # Request
//
// Request wraps *http.Request with Laravel-style accessors.
//
//	req := gohttp.NewRequest(r)
//
//	var payload struct {
//	    Name string `json:"name"`
//	}
//	if err := req.Bind(&payload); err != nil { ... } // JSON or form body
//
//	token := req.RouteParam("token")       // chi URL parameter
//	limit := req.QueryInt("limit", 10)
//	ip    := req.Query("ip")
//	all   := req.All()                     // query + form, map[string]string
//
//	req.IsXHR()         // X-Requested-With: XMLHttpRequest
//	req.IsJSON()        // Accept or Content-Type is JSON
//	req.BearerToken()
//	req.IP()
//
// # Response
//
// Response wraps http.ResponseWriter.
//
//	res := gohttp.NewResponse(w)
//
//	res.Success(data)                 // 200 {"data": ...}
//	res.Created(data)                 // 201 {"data": ...}
//	res.HTML(200, page)
//	res.Text(404, "Token not found")
//	res.NotFound()                    // 404 {"message": "Not found."}
//	res.ValidationError(errs)         // 422 {"errors": {"field": ["msg"]}}
//	res.RedirectTo("/_profiler/")     // 302
//
// # ViewEngine
//
// ViewEngine renders html/template files found through a Loader. Names
// starting with "@Namespace/" are looked up in the paths registered for
// that namespace, other names in the main paths. Sprig functions are
// available in every template.
//
//	loader := gohttp.NewLoader(".html")
//	loader.AddDir("./views", "")
//	loader.AddPath(templatesFS, "WebProfiler")
//
//	engine := gohttp.NewViewEngine(loader)
//	engine.AddFunc("yaml_encode", yamlEncode)
//	engine.View(w, "home", map[string]any{"title": "Home"})
//	engine.ViewWithLayout(w, "layouts/app", "home", data)
//	html, err := engine.RenderBlock("@WebProfiler/Collector/time", "toolbar", data)
package http
