package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

type middleware func(http.HandlerFunc) http.HandlerFunc

// chainMiddleware wraps h so that mw[0] runs first.
func chainMiddleware(h http.HandlerFunc, mw ...middleware) http.HandlerFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc, mw ...middleware) {
		method, path, _ := strings.Cut(pattern, " ")
		mux.HandleFunc(method+" "+BasePath+path, chainMiddleware(h, append([]middleware{s.recoverMiddleware}, mw...)...))
	}

	route("GET "+RouteHealth, s.health)
	route("GET "+RouteEcho, s.echo)
	route("POST "+RouteEcho, s.echo)

	route("POST "+RouteAuthLogin, s.login, s.csrfProtected)
	route("POST "+RouteAuthLogout, s.logout, s.csrfProtected)
	route("POST "+RouteAuthRegister, s.register, s.csrfProtected)
	route("POST "+RouteTokenRefresh, s.refresh, s.csrfProtected)
	route("POST "+RouteTokenVerify, s.verify, s.csrfProtected)

	route("GET "+RouteUser, s.user, s.protected)
	route("GET "+RouteUserSettings, s.settings, s.protected)
	route("PUT "+RouteUserSettings, s.updateSettings, s.protected)

	route("GET "+RouteImages+"{$}", s.listImages, s.protected)
	route("POST "+RouteImageUpload+"{$}", s.uploadImage, s.protected)
	route("GET "+RouteImage+"{$}", s.getImage, s.protected)
	route("DELETE "+RouteImage+"{$}", s.deleteImage, s.protected)
	route("POST "+RouteImageProcess+"{$}", s.processImage, s.protected)

	route("GET "+RouteProcessedImages+"{$}", s.listProcessed, s.protected)
	route("GET "+RouteProcessedImage+"{$}", s.getProcessed, s.protected)
	route("DELETE "+RouteProcessedImage+"{$}", s.deleteProcessed, s.protected)

	route("GET "+RouteModels+"{$}", s.listModels)
	route("GET "+RouteModel+"{$}", s.getModel)

	return mux
}

// recoverMiddleware turns a handler panic into a 500 and fails the test.
func (s *Server) recoverMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.t.Errorf("apitest: panic serving %s %s: %v", r.Method, r.URL.Path, rec)
				writeEnvelope(w, http.StatusInternalServerError, "Internal server error", nil)
			}
		}()
		next(w, r)
	}
}

// csrfProtected mirrors Django's CsrfViewMiddleware for unsafe methods.
func (s *Server) csrfProtected(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !csrfValid(r) {
			writeJSON(w, http.StatusForbidden, map[string]string{"detail": "CSRF Failed: CSRF token missing or incorrect."})
			return
		}
		next(w, r)
	}
}

// protected requires a valid bearer token and, for unsafe methods, CSRF.
func (s *Server) protected(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.count(r.Method + " " + r.URL.Path)
		if !s.authorized(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"detail": "Given token not valid for any token type",
				"code":   "token_not_valid",
			})
			return
		}
		if r.Method != http.MethodGet && !csrfValid(r) {
			writeJSON(w, http.StatusForbidden, map[string]string{"detail": "CSRF Failed: CSRF token missing or incorrect."})
			return
		}
		next(w, r)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.count(CallProbe)

	s.mu.Lock()
	setCookie := s.setCSRFCookie
	s.mu.Unlock()

	if setCookie {
		http.SetCookie(w, &http.Cookie{
			Name:     CSRFCookieName,
			Value:    newCSRFToken(),
			Path:     "/",
			SameSite: http.SameSiteLaxMode,
			MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		})
	}
	writeEnvelope(w, http.StatusOK, "API is healthy!", nil)
}

func (s *Server) echo(w http.ResponseWriter, r *http.Request) {
	s.count(CallEcho)
	body, _ := io.ReadAll(r.Body)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"method":  r.Method,
		"headers": r.Header,
		"body":    string(body),
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	s.count(CallLogin)

	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Malformed request body"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[creds.Username]
	if !ok || acc.Password != creds.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "No active account found with the given credentials"})
		return
	}
	http.SetCookie(w, s.startSessionLocked())
	writeJSON(w, http.StatusOK, map[string]string{"access": s.mintLocked()})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.count(CallLogout)

	s.mu.Lock()
	if cookie, err := r.Cookie(RefreshCookieName); err == nil {
		delete(s.sessions, cookie.Value)
	}
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: RefreshCookieName, Value: "", Path: "/", MaxAge: -1})
	writeEnvelope(w, http.StatusOK, "Logged out", nil)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var reg struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		Username  string `json:"username"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil || reg.Username == "" {
		writeEnvelope(w, http.StatusBadRequest, "Invalid registration data", nil)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[reg.Username]; exists {
		writeEnvelope(w, http.StatusBadRequest, "Username already exists", nil)
		return
	}
	s.accounts[reg.Username] = &account{
		ID:        len(s.accounts) + 1,
		Email:     reg.Email,
		Username:  reg.Username,
		Password:  reg.Password,
		FirstName: reg.FirstName,
		LastName:  reg.LastName,
		Theme:     "systemdefault",
	}
	writeEnvelope(w, http.StatusCreated, "User registered successfully", nil)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	s.count(CallRefresh)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refreshStatus < 200 || s.refreshStatus > 299 {
		writeJSON(w, s.refreshStatus, map[string]string{"detail": "Token is invalid or expired", "code": "token_not_valid"})
		return
	}
	if !s.hasSessionLocked(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "No valid refresh token found", "code": "token_not_valid"})
		return
	}

	access := s.refreshToken
	if access == "" {
		access = s.mintLocked()
	}
	s.issued[access] = true
	writeJSON(w, s.refreshStatus, map[string]string{"access": access})
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
	s.count(CallVerify)

	var body struct {
		Token string `json:"token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	r.Header.Set("Authorization", "Bearer "+body.Token)
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token is invalid or expired", "code": "token_not_valid"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{})
}

func (s *Server) seededAccount() *account {
	return s.accounts["ada"]
}

func (s *Server) user(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	acc := *s.seededAccount()
	s.mu.Unlock()

	writeEnvelope(w, http.StatusOK, "User details", map[string]interface{}{
		"id":         acc.ID,
		"email":      acc.Email,
		"username":   acc.Username,
		"first_name": acc.FirstName,
		"last_name":  acc.LastName,
	})
}

func (s *Server) settings(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	theme := s.seededAccount().Theme
	s.mu.Unlock()

	writeEnvelope(w, http.StatusOK, "User settings", map[string]string{"theme": theme})
}

func (s *Server) updateSettings(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Theme string `json:"theme"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeEnvelope(w, http.StatusBadRequest, "Invalid settings", nil)
		return
	}
	switch body.Theme {
	case "light", "dark", "systemdefault":
	default:
		writeEnvelope(w, http.StatusBadRequest, "Invalid theme", nil)
		return
	}

	s.mu.Lock()
	s.seededAccount().Theme = body.Theme
	s.mu.Unlock()

	writeEnvelope(w, http.StatusOK, "Settings updated", map[string]string{"theme": body.Theme})
}

func imageJSON(img *image) map[string]interface{} {
	return map[string]interface{}{
		"id":           img.ID,
		"image_name":   img.Name,
		"image_format": img.Format,
		"image_size":   len(img.Data),
		"upload_date":  img.Uploaded,
		"is_processed": img.IsProcessed,
	}
}

func (s *Server) listImages(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int, 0, len(s.images))
	for id := range s.images {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	list := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		list = append(list, imageJSON(s.images[id]))
	}
	writeEnvelope(w, http.StatusOK, "Images", list)
}

func (s *Server) uploadImage(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("image")
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, "No image provided", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil || len(data) == 0 {
		writeEnvelope(w, http.StatusBadRequest, "Empty image", nil)
		return
	}

	s.mu.Lock()
	id := s.addImageLocked(header.Filename, data)
	img := imageJSON(s.images[id])
	s.mu.Unlock()

	writeEnvelope(w, http.StatusCreated, "Image uploaded successfully", img)
}

func pathID(r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(r.PathValue(name))
	return id, err == nil
}

func (s *Server) getImage(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r, "id")

	s.mu.Lock()
	img, ok := s.images[id]
	s.mu.Unlock()

	if !ok {
		writeEnvelope(w, http.StatusNotFound, "Image not found", nil)
		return
	}
	w.Header().Set("Content-Type", "image/"+img.Format)
	_, _ = w.Write(img.Data)
}

func (s *Server) deleteImage(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r, "id")

	s.mu.Lock()
	_, ok := s.images[id]
	delete(s.images, id)
	s.mu.Unlock()

	if !ok {
		writeEnvelope(w, http.StatusNotFound, "Image not found", nil)
		return
	}
	writeEnvelope(w, http.StatusOK, "Image deleted", nil)
}

func (s *Server) processImage(w http.ResponseWriter, r *http.Request) {
	imageID, _ := pathID(r, "id")
	modelID, _ := pathID(r, "model")

	s.mu.Lock()
	defer s.mu.Unlock()

	img, ok := s.images[imageID]
	if !ok {
		writeEnvelope(w, http.StatusNotFound, "Image not found", nil)
		return
	}
	m, ok := s.models[modelID]
	if !ok {
		writeEnvelope(w, http.StatusNotFound, "Model not found", nil)
		return
	}

	out := append([]byte(fmt.Sprintf("%s:", m.Name)), img.Data...)
	img.IsProcessed = true
	s.processed[imageID] = &processedImage{ID: imageID, ImageID: imageID, ModelID: modelID, Data: out, Created: time.Now().UTC()}

	w.Header().Set("Content-Type", "image/"+img.Format)
	_, _ = w.Write(out)
}

func (s *Server) listProcessed(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int, 0, len(s.processed))
	for id := range s.processed {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	list := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		p := s.processed[id]
		list = append(list, map[string]interface{}{
			"id":            p.ID,
			"image":         p.ImageID,
			"model":         p.ModelID,
			"creation_date": p.Created,
			"output_format": s.images[p.ImageID].Format,
		})
	}
	writeEnvelope(w, http.StatusOK, "Processed images", list)
}

func (s *Server) getProcessed(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r, "id")

	s.mu.Lock()
	p, ok := s.processed[id]
	s.mu.Unlock()

	if !ok {
		writeEnvelope(w, http.StatusNotFound, "Processed image not found", nil)
		return
	}
	_, _ = w.Write(p.Data)
}

func (s *Server) deleteProcessed(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r, "id")

	s.mu.Lock()
	_, ok := s.processed[id]
	delete(s.processed, id)
	if img, exists := s.images[id]; exists && ok {
		img.IsProcessed = false
	}
	s.mu.Unlock()

	if !ok {
		writeEnvelope(w, http.StatusNotFound, "Processed image not found", nil)
		return
	}
	writeEnvelope(w, http.StatusOK, "Processed image deleted", nil)
}

func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int, 0, len(s.models))
	for id := range s.models {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	list := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		m := s.models[id]
		list = append(list, map[string]interface{}{"id": m.ID, "model_name": m.Name, "model_type": m.Type})
	}
	writeEnvelope(w, http.StatusOK, "Models", list)
}

func (s *Server) getModel(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r, "id")

	s.mu.Lock()
	m, ok := s.models[id]
	s.mu.Unlock()

	if !ok {
		writeEnvelope(w, http.StatusNotFound, "Model not found", nil)
		return
	}
	writeEnvelope(w, http.StatusOK, "Model details", m)
}
