package handler

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"service_finder/internal/api/middleware"
	"service_finder/internal/app/service"
	"service_finder/internal/common"
	"service_finder/internal/common/geo"

	"github.com/go-chi/chi/v5"
)

const maxImageBytes = 10 << 20

type ProviderHandler struct {
	providerService *service.ProviderService
}

func NewProviderHandler(ps *service.ProviderService) *ProviderHandler {
	return &ProviderHandler{providerService: ps}
}

func (h *ProviderHandler) RegisterRoutes(r chi.Router, authn func(http.Handler) http.Handler) {
	r.Get("/nearby", h.nearbyProviders)                    // GET /api/providers/nearby?lat=&lng=&radius=
	r.Get("/category/{categoryId}", h.providersByCategory) // GET /api/providers/category/{categoryId}
	r.Get("/{id}", h.getProvider)                          // GET /api/providers/{id}

	r.Group(func(adminRouter chi.Router) {
		adminRouter.Use(authn)
		adminRouter.Use(middleware.AdminOnly)
		adminRouter.Get("/", h.listProviders)
		adminRouter.Post("/", h.createProvider)
		adminRouter.Put("/{id}", h.updateProvider)
		adminRouter.Delete("/{id}", h.deleteProvider)
		adminRouter.Post("/{id}/images", h.uploadImage)
	})
}

func (h *ProviderHandler) nearbyProviders(w http.ResponseWriter, r *http.Request) {
	q, err := parseNearbyQuery(r.URL.Query())
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	providers, err := h.providerService.FindNearby(r.Context(), q)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, providers)
}

// parseNearbyQuery reads lat, lng, radius (km, default 10) and categoryId.
func parseNearbyQuery(values url.Values) (service.NearbyQuery, error) {
	latStr, lngStr := strings.TrimSpace(values.Get("lat")), strings.TrimSpace(values.Get("lng"))
	if latStr == "" || lngStr == "" {
		return service.NearbyQuery{}, fmt.Errorf("latitude and longitude are required: %w", common.ErrBadRequest)
	}
	lat, err := parseFinite(latStr)
	if err != nil {
		return service.NearbyQuery{}, fmt.Errorf("invalid latitude %q: %w", latStr, common.ErrBadRequest)
	}
	lng, err := parseFinite(lngStr)
	if err != nil {
		return service.NearbyQuery{}, fmt.Errorf("invalid longitude %q: %w", lngStr, common.ErrBadRequest)
	}

	radius := float64(geo.DefaultRadiusKm)
	if radiusStr := strings.TrimSpace(values.Get("radius")); radiusStr != "" {
		radius, err = parseFinite(radiusStr)
		if err != nil || radius <= 0 {
			return service.NearbyQuery{}, fmt.Errorf("invalid radius %q: %w", radiusStr, common.ErrBadRequest)
		}
	}

	return service.NearbyQuery{
		Lat:        lat,
		Lng:        lng,
		RadiusKm:   radius,
		CategoryID: strings.TrimSpace(values.Get("categoryId")),
	}, nil
}

func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	return v, nil
}

func (h *ProviderHandler) providersByCategory(w http.ResponseWriter, r *http.Request) {
	providers, err := h.providerService.GetByCategory(r.Context(), chi.URLParam(r, "categoryId"))
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, providers)
}

func (h *ProviderHandler) getProvider(w http.ResponseWriter, r *http.Request) {
	provider, err := h.providerService.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, provider)
}

func (h *ProviderHandler) listProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.providerService.GetAll(r.Context())
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, providers)
}

func (h *ProviderHandler) createProvider(w http.ResponseWriter, r *http.Request) {
	var req service.CreateProviderRequest
	if err := common.DecodeJSON(w, r, &req); err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	provider, err := h.providerService.Create(r.Context(), req)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, provider)
}

func (h *ProviderHandler) updateProvider(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateProviderRequest
	if err := common.DecodeJSON(w, r, &req); err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	provider, err := h.providerService.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, provider)
}

func (h *ProviderHandler) deleteProvider(w http.ResponseWriter, r *http.Request) {
	if err := h.providerService.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, common.MessageResponse{Message: "Service provider removed"})
}

func (h *ProviderHandler) uploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid multipart upload: "+err.Error())
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Missing image file")
		return
	}
	defer file.Close()

	// The declared part Content-Type is client-controlled; trust the bytes.
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		common.RespondWithError(w, http.StatusBadRequest, "Unreadable image file")
		return
	}
	head = head[:n]
	if !strings.HasPrefix(http.DetectContentType(head), "image/") {
		common.RespondWithError(w, http.StatusBadRequest, "Only image uploads are allowed")
		return
	}

	provider, err := h.providerService.AddImage(r.Context(), chi.URLParam(r, "id"), io.MultiReader(bytes.NewReader(head), file))
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, provider)
}
