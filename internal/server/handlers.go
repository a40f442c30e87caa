package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"meal-planner/internal/calendar"
	"meal-planner/internal/mealplan"
	"meal-planner/internal/metrics"
	"meal-planner/internal/storage"

	"github.com/gin-gonic/gin"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, metrics.GetSysHealth(s.dataPath))
}

func (s *Server) getWeek(c *gin.Context) {
	raw := c.Query("weekStart")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "weekStart is required"})
		return
	}
	weekStart, err := calendar.ParseDate(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid weekStart: %v", err)})
		return
	}

	entries, err := s.entries.ListWeek(c.Request.Context(), c.Param("userId"), weekStart)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) addEntry(c *gin.Context) {
	var req mealplan.AddEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request: %v", err)})
		return
	}
	mealType, err := mealplan.ParseMealType(string(req.MealType))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.MealType = mealType
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	userID := c.Param("userId")
	rec, err := s.saved.Get(ctx, userID, req.RecipeID)
	if err != nil {
		s.fail(c, err)
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("recipe %d is not saved", req.RecipeID)})
		return
	}

	entry, err := s.entries.Insert(ctx, userID, *rec, req.MealDate, req.MealType)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (s *Server) removeEntry(c *gin.Context) {
	entryID, ok := pathID(c, "entryId")
	if !ok {
		return
	}
	if err := s.entries.Delete(c.Request.Context(), c.Param("userId"), entryID); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) updateStatus(c *gin.Context) {
	entryID, ok := pathID(c, "entryId")
	if !ok {
		return
	}
	var req mealplan.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request: %v", err)})
		return
	}
	status, err := mealplan.ParseStatus(string(req.Status))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.entries.UpdateStatus(c.Request.Context(), c.Param("userId"), entryID, status); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listSavedRecipes(c *gin.Context) {
	recipes, err := s.saved.List(c.Request.Context(), c.Param("userId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, recipes)
}

func (s *Server) saveRecipe(c *gin.Context) {
	recipeID, ok := pathID(c, "recipeId")
	if !ok {
		return
	}
	var rec mealplan.Recipe
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request: %v", err)})
		return
	}
	if rec.RecipeID == 0 {
		rec.RecipeID = recipeID
	}
	if rec.RecipeID != recipeID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipeId in body does not match path"})
		return
	}

	if err := s.saved.Save(c.Request.Context(), c.Param("userId"), rec); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) removeSavedRecipe(c *gin.Context) {
	recipeID, ok := pathID(c, "recipeId")
	if !ok {
		return
	}
	if err := s.saved.Remove(c.Request.Context(), c.Param("userId"), recipeID); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) dailyMetrics(c *gin.Context) {
	if s.metrics == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "metrics are disabled"})
		return
	}
	days := 7
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
			return
		}
		days = n
	}

	usage, err := s.metrics.GetDailyUsage(c.Request.Context(), days)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, usage)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid %s", name)})
		return 0, false
	}
	return id, true
}

// fail renders repository errors. Anything other than a missing row is a 500.
func (s *Server) fail(c *gin.Context, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	s.logger.Error("request failed",
		"route", c.FullPath(),
		"request_id", c.GetString(requestIDKey),
		"error", err,
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
