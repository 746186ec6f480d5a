package handler

import (
	"net/http"

	"service_finder/internal/api/middleware"
	"service_finder/internal/app/service"
	"service_finder/internal/common"

	"github.com/go-chi/chi/v5"
)

type UserHandler struct {
	userService *service.UserService
}

func NewUserHandler(us *service.UserService) *UserHandler {
	return &UserHandler{userService: us}
}

// RegisterRoutes mounts /users. Every route needs a resolved user; all but
// the profile routes also need the admin flag.
func (h *UserHandler) RegisterRoutes(r chi.Router, authn func(http.Handler) http.Handler) {
	r.Group(func(userRouter chi.Router) {
		userRouter.Use(authn)
		userRouter.Get("/profile", h.getProfile)
		userRouter.Put("/profile", h.updateProfile)

		userRouter.Group(func(adminRouter chi.Router) {
			adminRouter.Use(middleware.AdminOnly)
			adminRouter.Get("/", h.listUsers)
			adminRouter.Get("/{id}", h.getUser)
			adminRouter.Put("/{id}", h.updateUser)
			adminRouter.Delete("/{id}", h.deleteUser)
		})
	})
}

func (h *UserHandler) getProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	common.RespondWithJSON(w, http.StatusOK, user)
}

func (h *UserHandler) updateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	var req service.UpdateProfileRequest
	if err := common.DecodeJSON(w, r, &req); err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	updated, err := h.userService.UpdateProfile(r.Context(), user.ID, req)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, updated)
}

func (h *UserHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, users)
}

func (h *UserHandler) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, user)
}

func (h *UserHandler) updateUser(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateUserRequest
	if err := common.DecodeJSON(w, r, &req); err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	user, err := h.userService.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, user)
}

func (h *UserHandler) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.userService.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, common.MessageResponse{Message: "User removed"})
}
