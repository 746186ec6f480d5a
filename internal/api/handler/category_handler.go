package handler

import (
	"net/http"

	"service_finder/internal/api/middleware"
	"service_finder/internal/app/service"
	"service_finder/internal/common"

	"github.com/go-chi/chi/v5"
)

type CategoryHandler struct {
	categoryService *service.CategoryService
}

func NewCategoryHandler(cs *service.CategoryService) *CategoryHandler {
	return &CategoryHandler{categoryService: cs}
}

func (h *CategoryHandler) RegisterRoutes(r chi.Router, authn func(http.Handler) http.Handler) {
	r.Get("/", h.listCategories)  // GET /api/categories
	r.Get("/{id}", h.getCategory) // GET /api/categories/{id}

	r.Group(func(adminRouter chi.Router) {
		adminRouter.Use(authn)
		adminRouter.Use(middleware.AdminOnly)
		adminRouter.Get("/admin/all", h.listAllCategories)
		adminRouter.Post("/", h.createCategory)
		adminRouter.Put("/{id}", h.updateCategory)
		adminRouter.Delete("/{id}", h.deleteCategory)
	})
}

func (h *CategoryHandler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categoryService.ListPublic(r.Context())
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, categories)
}

func (h *CategoryHandler) listAllCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categoryService.ListAll(r.Context())
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, categories)
}

func (h *CategoryHandler) getCategory(w http.ResponseWriter, r *http.Request) {
	category, err := h.categoryService.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, category)
}

func (h *CategoryHandler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req service.CreateCategoryRequest
	if err := common.DecodeJSON(w, r, &req); err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	category, err := h.categoryService.Create(r.Context(), req)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, category)
}

func (h *CategoryHandler) updateCategory(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateCategoryRequest
	if err := common.DecodeJSON(w, r, &req); err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	category, err := h.categoryService.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, category)
}

func (h *CategoryHandler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.categoryService.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, common.MessageResponse{Message: "Category removed"})
}
