package api

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"parking-garage-backend/internal/model"
	"parking-garage-backend/internal/parking"
)

type putSubscriptionRequest struct {
	Endpoint          string   `json:"endpoint" binding:"required"`
	P256DH            string   `json:"p256dh" binding:"required"`
	Auth              string   `json:"auth" binding:"required"`
	SubscribedSectors []string `json:"subscribed_sectors"`
}

// PutSubscription creates or replaces a push subscription and the sectors it
// watches for free spots.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request")
		return
	}

	ids := make([]string, 0, len(req.SubscribedSectors))
	for _, id := range req.SubscribedSectors {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	subscription := model.PushSubscription{
		Endpoint: req.Endpoint,
		P256DH:   req.P256DH,
		Auth:     req.Auth,
	}

	err := h.store.DB().WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var sectors []*model.Sector
		if len(ids) > 0 {
			if err := tx.Where("id IN ?", ids).Find(&sectors).Error; err != nil {
				return err
			}
		}
		if len(sectors) != len(ids) {
			return fmt.Errorf("%w: %s", parking.ErrSectorNotFound, missingSectors(ids, sectors))
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Create(&subscription).Error; err != nil {
			return err
		}

		return tx.Model(&subscription).Association("Sectors").Replace(&sectors)
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Status(http.StatusCreated)
}

func missingSectors(want []string, found []*model.Sector) string {
	have := make(map[string]bool, len(found))
	for _, s := range found {
		have[s.ID] = true
	}
	var missing []string
	for _, id := range want {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	return strings.Join(missing, ", ")
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription removes a subscription and its sector mappings.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request")
		return
	}

	err := h.store.DB().WithContext(c.Request.Context()).
		Select(clause.Associations).
		Delete(&model.PushSubscription{Endpoint: req.Endpoint}).Error
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// rawQueryParam reads a query value without URL-decoding it. Push endpoints
// are stored exactly as the browser reported them.
func rawQueryParam(rawQuery, key string) (string, bool) {
	for _, kv := range strings.Split(rawQuery, "&") {
		if strings.HasPrefix(kv, key+"=") {
			return kv[len(key)+1:], true
		}
	}
	return "", false
}

// GetSubscription returns the sectors a subscription watches.
func (h *Handler) GetSubscription(c *gin.Context) {
	raw, ok := rawQueryParam(c.Request.URL.RawQuery, "endpoint")
	if !ok || raw == "" {
		h.writeError(c, http.StatusBadRequest, codeMissingParameter, "endpoint is required")
		return
	}

	var subscription model.PushSubscription
	err := h.store.DB().WithContext(c.Request.Context()).
		Preload("Sectors", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&subscription, "endpoint = ?", raw).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		h.writeError(c, http.StatusNotFound, codeNotFound, "subscription not found")
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	sectorIDs := make([]string, len(subscription.Sectors))
	for i, sector := range subscription.Sectors {
		sectorIDs[i] = sector.ID
	}

	c.JSON(http.StatusOK, gin.H{"subscribed_sectors": sectorIDs})
}
