package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"healthbyte/api/internal/middleware"
	"healthbyte/api/internal/models"
	"healthbyte/api/internal/pipeline"
	"healthbyte/api/internal/repository"
)

type mealResponse struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Calories     int       `json:"calories"`
	HealthRating int       `json:"healthRating"`
	Tags         []string  `json:"tags"`
	ImgURLs      []string  `json:"imgUrls"`
	Likes        int       `json:"likes"`
	OwnerID      string    `json:"ownerId"`
	Timestamp    time.Time `json:"timestamp"`
}

func toMealResponse(meal models.Meal) mealResponse {
	return mealResponse{
		ID:           meal.ID,
		Type:         meal.Type,
		Name:         meal.Name,
		Description:  meal.Description,
		Calories:     meal.Calories,
		HealthRating: meal.HealthRating,
		Tags:         meal.Tags,
		ImgURLs:      meal.ImgURLs,
		Likes:        meal.Likes,
		OwnerID:      meal.OwnerID,
		Timestamp:    meal.Timestamp,
	}
}

// SubmitMeal accepts the multipart submission form and drives one
// pipeline run. The response distinguishes a policy rejection, which is
// final for this content, from a transient failure worth retrying.
func (h HandlerSet) SubmitMeal(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
		return
	}

	calories, _ := strconv.Atoi(c.PostForm("calories"))
	healthRating, _ := strconv.Atoi(c.PostForm("healthRating"))

	meal := models.Meal{
		Type:         c.PostForm("type"),
		Name:         c.PostForm("name"),
		Description:  c.PostForm("description"),
		Calories:     calories,
		HealthRating: healthRating,
		Tags:         splitTags(c.PostForm("tags")),
	}

	var items []*models.MediaItem
	for _, header := range form.File["images"] {
		file, err := header.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read uploaded file"})
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read uploaded file"})
			return
		}
		items = append(items, &models.MediaItem{
			Filename:     header.Filename,
			DeclaredMIME: header.Header.Get("Content-Type"),
			Data:         data,
			Stage:        models.MediaStageRaw,
		})
	}

	result, err := h.controller.Run(c.Request.Context(), pipeline.Submission{
		Identity: identity,
		Meal:     meal,
		Items:    items,
	})

	switch result.Status {
	case pipeline.RunStatusCommitted:
		c.JSON(http.StatusCreated, gin.H{"meal": toMealResponse(result.Meal)})
	case pipeline.RunStatusRejected:
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"status": string(result.Status),
			"error":  result.Message,
		})
	default:
		status := http.StatusInternalServerError
		var validationErr *pipeline.ValidationError
		if errors.As(err, &validationErr) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{
			"status": string(result.Status),
			"error":  result.Message,
		})
	}
}

func (h HandlerSet) GetMeal(c *gin.Context) {
	meal, err := h.meals.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrMealNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "meal_not_found"})
			return
		}
		h.log.Error().Err(err).Str("meal_id", c.Param("id")).Msg("get meal failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"meal": toMealResponse(meal)})
}

func (h HandlerSet) ListMeals(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	meals, err := h.meals.ListRecent(c.Request.Context(), limit, offset)
	if err != nil {
		h.log.Error().Err(err).Msg("list meals failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}

	responses := make([]mealResponse, 0, len(meals))
	for _, meal := range meals {
		responses = append(responses, toMealResponse(meal))
	}
	c.JSON(http.StatusOK, gin.H{"meals": responses})
}

func (h HandlerSet) LikeMeal(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	likes, err := h.meals.ToggleLike(c.Request.Context(), c.Param("id"), identity.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrMealNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "meal_not_found"})
			return
		}
		h.log.Error().Err(err).Str("meal_id", c.Param("id")).Msg("toggle like failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"likes": likes})
}

func splitTags(raw string) []string {
	var tags []string
	for _, tag := range strings.Split(raw, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
