package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"petsitter/pkg/auth"
	"petsitter/pkg/availability"
	"petsitter/pkg/config"
	"petsitter/pkg/database"
	"petsitter/pkg/events"
	"petsitter/pkg/models"
	"petsitter/pkg/queue"
	"petsitter/pkg/rating"
	"petsitter/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) PublishJSON(_ context.Context, key string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type testEnv struct {
	pub      *recordingPublisher
	owner    models.User
	customer models.User
	stranger models.User
	sitter   models.Sitter
}

func setupTest(t *testing.T) *testEnv {
	gin.SetMode(gin.TestMode)
	validation.Register()

	testDB, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	db = testDB

	env := &testEnv{pub: &recordingPublisher{}}
	tokens = auth.NewTokens("test-secret", time.Hour)
	notifier = events.NewNotifier(env.pub, zap.NewNop())
	ratings = rating.NewWorker(db, queue.NewQueue(), zap.NewNop())

	env.owner = models.User{Username: "anna", Email: "anna@example.com", PasswordHash: "x", Role: models.RoleUser}
	env.customer = models.User{Username: "bob", Email: "bob@example.com", PasswordHash: "x", Role: models.RoleUser}
	env.stranger = models.User{Username: "eve", Email: "eve@example.com", PasswordHash: "x", Role: models.RoleUser}
	for _, u := range []*models.User{&env.owner, &env.customer, &env.stranger} {
		require.NoError(t, db.Create(u).Error)
	}

	env.sitter = models.Sitter{UserID: env.owner.ID, Name: "Anna", BasePrice: 80, City: "Shanghai", Rating: 4.5}
	require.NoError(t, db.Create(&env.sitter).Error)

	_, err = availability.SetSlots(context.Background(), db, env.sitter.ID, []availability.SlotInput{
		{Date: "2025-06-01", StartTime: "09:00", EndTime: "10:00", IsAvailable: true},
		{Date: "2025-06-01", StartTime: "11:00", EndTime: "12:00", IsAvailable: false},
	})
	require.NoError(t, err)
	return env
}

func perform(handler gin.HandlerFunc, method, path string, body interface{}, userID string, params ...gin.Param) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = params
	if userID != "" {
		c.Set(auth.ContextUserID, userID)
	}
	handler(c)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

func bookingBody(sitterID, startTime string) map[string]interface{} {
	return map[string]interface{}{
		"sitterId":    sitterID,
		"date":        "2025-06-01",
		"startTime":   startTime,
		"serviceType": "walking",
		"price":       80,
		"petInfo":     "Corgi",
	}
}

func TestRegisterAndLogin(t *testing.T) {
	setupTest(t)

	body := map[string]interface{}{"username": "carol", "email": "Carol@Example.com", "password": "secret1"}
	w := perform(register, "POST", "/api/v1/auth/register", body, "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "carol@example.com", decode(t, w)["email"])

	w = perform(register, "POST", "/api/v1/auth/register", body, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(login, "POST", "/api/v1/auth/login", map[string]interface{}{"username": "carol", "password": "secret1"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	token, ok := decode(t, w)["token"].(string)
	require.True(t, ok)
	claims, err := tokens.ParseValidate(token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, claims.Role)

	w = perform(login, "POST", "/api/v1/auth/login", map[string]interface{}{"username": "carol", "password": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Unauthorized", decode(t, w)["kind"])
}

func TestCreateBooking(t *testing.T) {
	env := setupTest(t)

	w := perform(createBooking, "POST", "/api/v1/bookings", bookingBody(env.sitter.ID, "09:00"), env.customer.ID)
	require.Equal(t, http.StatusCreated, w.Code)
	response := decode(t, w)
	assert.Equal(t, models.StatusPending, response["status"])
	assert.Equal(t, "10:00", response["endTime"])
	assert.Nil(t, response["lastContacted"])
	assert.Equal(t, "bob", response["user"].(map[string]interface{})["username"])
	assert.Equal(t, []string{events.BookingCreated}, env.pub.keys)

	w = perform(createBooking, "POST", "/api/v1/bookings", bookingBody(env.sitter.ID, "09:00"), env.stranger.ID)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "SlotTaken", decode(t, w)["kind"])

	w = perform(createBooking, "POST", "/api/v1/bookings", bookingBody(env.sitter.ID, "11:00"), env.stranger.ID)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "SlotUnavailable", decode(t, w)["kind"])

	w = perform(createBooking, "POST", "/api/v1/bookings", bookingBody("missing", "09:00"), env.stranger.ID)
	assert.Equal(t, http.StatusNotFound, w.Code)

	bad := bookingBody(env.sitter.ID, "9am")
	w = perform(createBooking, "POST", "/api/v1/bookings", bad, env.stranger.ID)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ValidationError", decode(t, w)["kind"])

	var count int64
	db.Model(&models.Booking{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestUpdateBookingStatus(t *testing.T) {
	env := setupTest(t)

	w := perform(createBooking, "POST", "/api/v1/bookings", bookingBody(env.sitter.ID, "09:00"), env.customer.ID)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["id"].(string)
	param := gin.Param{Key: "id", Value: id}

	w = perform(updateBooking, "PUT", "/api/v1/bookings/"+id, map[string]interface{}{"status": "confirmed"}, env.customer.ID, param)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = perform(updateBooking, "PUT", "/api/v1/bookings/"+id, map[string]interface{}{"status": "confirmed"}, env.stranger.ID, param)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = perform(updateBooking, "PUT", "/api/v1/bookings/"+id, map[string]interface{}{"status": "confirmed"}, env.owner.ID, param)
	require.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	assert.Equal(t, models.StatusConfirmed, response["status"])
	assert.NotNil(t, response["lastContacted"])

	require.NoError(t, db.Model(&models.Booking{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": models.StatusCompleted, "slot_key": nil}).Error)

	w = perform(cancelBooking, "DELETE", "/api/v1/bookings/"+id, nil, env.customer.ID, param)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidTransition", decode(t, w)["kind"])

	assert.Equal(t, []string{events.BookingCreated, events.BookingConfirmed}, env.pub.keys)
}

func TestCancelBookingFreesSlot(t *testing.T) {
	env := setupTest(t)

	w := perform(createBooking, "POST", "/api/v1/bookings", bookingBody(env.sitter.ID, "09:00"), env.customer.ID)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["id"].(string)

	w = perform(cancelBooking, "DELETE", "/api/v1/bookings/"+id, nil, env.customer.ID, gin.Param{Key: "id", Value: id})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusCancelled, decode(t, w)["status"])

	w = perform(createBooking, "POST", "/api/v1/bookings", bookingBody(env.sitter.ID, "09:00"), env.stranger.ID)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{events.BookingCreated, events.BookingCancelled, events.BookingCreated}, env.pub.keys)
}

func TestGetBookingPermissions(t *testing.T) {
	env := setupTest(t)

	w := perform(createBooking, "POST", "/api/v1/bookings", bookingBody(env.sitter.ID, "09:00"), env.customer.ID)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["id"].(string)
	param := gin.Param{Key: "id", Value: id}

	assert.Equal(t, http.StatusOK, perform(getBooking, "GET", "/api/v1/bookings/"+id, nil, env.owner.ID, param).Code)
	assert.Equal(t, http.StatusOK, perform(getBooking, "GET", "/api/v1/bookings/"+id, nil, env.customer.ID, param).Code)
	assert.Equal(t, http.StatusForbidden, perform(getBooking, "GET", "/api/v1/bookings/"+id, nil, env.stranger.ID, param).Code)

	sitterParam := gin.Param{Key: "sitterId", Value: env.sitter.ID}
	w = perform(getSitterBookings, "GET", "/api/v1/bookings/sitter/"+env.sitter.ID, nil, env.owner.ID, sitterParam)
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, len(list))

	w = perform(getSitterBookings, "GET", "/api/v1/bookings/sitter/"+env.sitter.ID, nil, env.customer.ID, sitterParam)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = perform(getMyBookings, "GET", "/api/v1/bookings/user/my-bookings", nil, env.customer.ID)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, len(list))
}

func TestAvailabilityEndpoints(t *testing.T) {
	env := setupTest(t)
	param := gin.Param{Key: "id", Value: env.sitter.ID}

	body := map[string]interface{}{
		"availabilities": []map[string]interface{}{
			{"date": "2025-06-02", "startTime": "09:00", "endTime": "10:00", "isAvailable": true},
			{"date": "2025-06-01", "startTime": "09:00", "endTime": "10:30", "isAvailable": false},
		},
	}
	w := perform(setAvailability, "POST", "/api/v1/sitters/"+env.sitter.ID+"/availability", body, env.stranger.ID, param)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = perform(setAvailability, "POST", "/api/v1/sitters/"+env.sitter.ID+"/availability", body, env.owner.ID, param)
	require.Equal(t, http.StatusOK, w.Code)

	w = perform(getAvailability, "GET", "/api/v1/sitters/"+env.sitter.ID+"/availability?date=2025-06-01", nil, "", param)
	require.Equal(t, http.StatusOK, w.Code)
	var slots []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &slots))
	assert.Equal(t, 0, len(slots))

	// the closed 09:00 slot can no longer be booked
	w = perform(createBooking, "POST", "/api/v1/bookings", bookingBody(env.sitter.ID, "09:00"), env.customer.ID)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "SlotUnavailable", decode(t, w)["kind"])

	w = perform(getAvailability, "GET", "/api/v1/sitters/"+env.sitter.ID+"/availability?startDate=2025-06-01&endDate=2025-06-30", nil, "", param)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &slots))
	require.Equal(t, 3, len(slots))
	assert.Equal(t, "10:30", slots[0]["endTime"])
	assert.Equal(t, "2025-06-02", slots[2]["date"])

	bad := map[string]interface{}{
		"availabilities": []map[string]interface{}{
			{"date": "tomorrow", "startTime": "09:00", "endTime": "10:00"},
		},
	}
	w = perform(setAvailability, "POST", "/api/v1/sitters/"+env.sitter.ID+"/availability", bad, env.owner.ID, param)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListSittersFilters(t *testing.T) {
	env := setupTest(t)

	other := models.Sitter{UserID: env.stranger.ID, Name: "Eve", BasePrice: 150, City: "Beijing", Rating: 3}
	require.NoError(t, db.Create(&other).Error)
	require.NoError(t, db.Create(&models.SitterService{SitterID: other.ID, ServiceType: "boarding", Price: 150}).Error)

	tests := []struct {
		name     string
		query    string
		expected []string
	}{
		{name: "default sort by rating", query: "", expected: []string{"Anna", "Eve"}},
		{name: "price descending", query: "?sortBy=price_desc", expected: []string{"Eve", "Anna"}},
		{name: "city", query: "?city=Beijing", expected: []string{"Eve"}},
		{name: "price range", query: "?minPrice=100&maxPrice=200", expected: []string{"Eve"}},
		{name: "service type", query: "?serviceType=boarding", expected: []string{"Eve"}},
		{name: "available on date", query: "?date=2025-06-01", expected: []string{"Anna"}},
		{name: "no one available", query: "?date=2025-06-05", expected: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := perform(listSitters, "GET", "/api/v1/sitters"+tt.query, nil, "")
			require.Equal(t, http.StatusOK, w.Code)
			var list []map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
			names := make([]string, 0, len(list))
			for _, s := range list {
				names = append(names, s["name"].(string))
			}
			assert.Equal(t, tt.expected, names)
		})
	}

	w := perform(listSitters, "GET", "/api/v1/sitters?date=2025-06-01", nil, "")
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Equal(t, 1, len(list))
	assert.Equal(t, 1, len(list[0]["availability"].([]interface{})))

	w = perform(listSitters, "GET", "/api/v1/sitters?minPrice=cheap", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSitterLifecycle(t *testing.T) {
	env := setupTest(t)

	body := map[string]interface{}{"name": "Bob", "basePrice": 60, "city": "Hangzhou", "certifications": []string{"cpr"}}
	w := perform(createSitter, "POST", "/api/v1/sitters", body, env.customer.ID)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["id"].(string)
	param := gin.Param{Key: "id", Value: id}

	w = perform(createSitter, "POST", "/api/v1/sitters", body, env.customer.ID)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(updateSitter, "PUT", "/api/v1/sitters/"+id, map[string]interface{}{"basePrice": 70}, env.stranger.ID, param)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = perform(updateSitter, "PUT", "/api/v1/sitters/"+id, map[string]interface{}{"basePrice": 70}, env.customer.ID, param)
	require.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	assert.Equal(t, float64(70), response["basePrice"])
	assert.Equal(t, "Hangzhou", response["city"])

	service := map[string]interface{}{"serviceType": "walking", "price": 60, "duration": 60}
	w = perform(addService, "POST", "/api/v1/sitters/"+id+"/services", service, env.customer.ID, param)
	require.Equal(t, http.StatusCreated, w.Code)
	serviceID := decode(t, w)["id"].(string)

	w = perform(addService, "POST", "/api/v1/sitters/"+id+"/services", service, env.customer.ID, param)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ValidationError", decode(t, w)["kind"])

	w = perform(updateService, "PUT", "/api/v1/sitters/"+id+"/services/"+serviceID, map[string]interface{}{"price": 65}, env.customer.ID,
		param, gin.Param{Key: "serviceId", Value: serviceID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(65), decode(t, w)["price"])

	w = perform(getSitter, "GET", "/api/v1/sitters/"+id, nil, "", param)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, len(decode(t, w)["services"].([]interface{})))

	w = perform(deleteSitter, "DELETE", "/api/v1/sitters/"+id, nil, env.customer.ID, param)
	require.Equal(t, http.StatusOK, w.Code)

	var services int64
	db.Model(&models.SitterService{}).Where("sitter_id = ?", id).Count(&services)
	assert.Equal(t, int64(0), services)
	assert.Equal(t, http.StatusNotFound, perform(getSitter, "GET", "/api/v1/sitters/"+id, nil, "", param).Code)
}

func TestAddReviewUpdatesRating(t *testing.T) {
	env := setupTest(t)
	param := gin.Param{Key: "id", Value: env.sitter.ID}

	for _, r := range []int{5, 4, 3} {
		w := perform(addReview, "POST", "/api/v1/sitters/"+env.sitter.ID+"/reviews", map[string]interface{}{"rating": r, "comment": "ok"}, env.customer.ID, param)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := perform(addReview, "POST", "/api/v1/sitters/"+env.sitter.ID+"/reviews", map[string]interface{}{"rating": 5}, env.owner.ID, param)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = perform(addReview, "POST", "/api/v1/sitters/"+env.sitter.ID+"/reviews", map[string]interface{}{"rating": 9}, env.customer.ID, param)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var reloaded models.Sitter
	require.NoError(t, db.First(&reloaded, "id = ?", env.sitter.ID).Error)
	assert.Equal(t, 4.0, reloaded.Rating)
	assert.Equal(t, 3, reloaded.ReviewCount)

	w = perform(getReviews, "GET", "/api/v1/sitters/"+env.sitter.ID+"/reviews", nil, "", param)
	require.Equal(t, http.StatusOK, w.Code)
	var reviews []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reviews))
	assert.Equal(t, 3, len(reviews))
}

func TestRouterAuthentication(t *testing.T) {
	env := setupTest(t)
	router := setupRouter(config.Config{CORSOrigins: "*"}, zap.NewNop())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/manage/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/bookings/user/my-bookings", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	userToken, err := tokens.CreateAccessToken(env.customer.ID, models.RoleUser)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/v1/bookings", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest("GET", "/api/v1/bookings/user/my-bookings", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	adminToken, err := tokens.CreateAccessToken(env.owner.ID, models.RoleAdmin)
	require.NoError(t, err)
	req = httptest.NewRequest("GET", "/api/v1/bookings", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
