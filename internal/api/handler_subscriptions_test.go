package api

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-garage-backend/internal/model"
	"parking-garage-backend/internal/parking"
)

const endpoint = "https://push.example.com/send/abc%2Fdef"

func TestPutSubscription_InvalidBody(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodPut, "/api/subscriptions", `{"endpoint":"x"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, parking.CodeValidation, body.Error)
	assert.Equal(t, "invalid request", body.Message)
}

func TestSubscriptionLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t)
	get := "/api/subscriptions?endpoint=" + endpoint

	w := env.do(http.MethodGet, get, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodPut, "/api/subscriptions",
		`{"endpoint":"`+endpoint+`","p256dh":"key","auth":"secret","subscribed_sectors":["B","A"," A "]}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(http.MethodGet, get, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"subscribed_sectors":["A","B"]}`, w.Body.String())

	// Replacing narrows the sectors and rotates the keys.
	w = env.do(http.MethodPut, "/api/subscriptions",
		`{"endpoint":"`+endpoint+`","p256dh":"key2","auth":"secret2","subscribed_sectors":["B"]}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(http.MethodGet, get, "")
	assert.JSONEq(t, `{"subscribed_sectors":["B"]}`, w.Body.String())

	var stored model.PushSubscription
	require.NoError(t, env.store.DB().First(&stored, "endpoint = ?", endpoint).Error)
	assert.Equal(t, "key2", stored.P256DH)
	assert.Equal(t, "secret2", stored.Auth)

	w = env.do(http.MethodDelete, "/api/subscriptions", `{"endpoint":"`+endpoint+`"}`)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(http.MethodGet, get, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	var mappings int64
	require.NoError(t, env.store.DB().Table("subscription_sector_mapping").Count(&mappings).Error)
	assert.Zero(t, mappings)
}

func TestPutSubscription_UnknownSector(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t)

	w := env.do(http.MethodPut, "/api/subscriptions",
		`{"endpoint":"`+endpoint+`","p256dh":"key","auth":"secret","subscribed_sectors":["A","Z"]}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, parking.CodeSectorNotFound, body.Error)
	assert.Contains(t, body.Message, "Z")

	var n int64
	require.NoError(t, env.store.DB().Model(&model.PushSubscription{}).Count(&n).Error)
	assert.Zero(t, n, "nothing is stored when a sector is unknown")
}

func TestGetSubscription_MissingEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodGet, "/api/subscriptions?other="+url.QueryEscape("x"), "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, codeMissingParameter, decodeError(t, w).Error)
}

func TestGetVAPIDPublicKey(t *testing.T) {
	w := newTestEnv(t, nil).do(http.MethodGet, "/api/vapid_public_key", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	env := newTestEnv(t, &webpush.Options{VAPIDPublicKey: "BPub"})
	w = env.do(http.MethodGet, "/api/vapid_public_key", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key":"BPub"}`, w.Body.String())
}
