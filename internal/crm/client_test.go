package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/topproz/leadchat/internal/leads"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL)
}

func TestGetZipcodeData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/master/getzipcodedata/30301", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":200,"result":"success","data":[{"city":"Atlanta","state":"GA","zipcode":"30301"}]}`))
	})

	zip, err := client.GetZipcodeData(context.Background(), "30301")
	require.NoError(t, err)
	assert.Equal(t, leads.ZipData{City: "Atlanta", State: "GA", Zipcode: "30301"}, zip)
}

func TestGetZipcodeDataEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":200,"result":"success","data":[]}`))
	})

	_, err := client.GetZipcodeData(context.Background(), "00000")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetCustomerProfile(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/customer/getCustomerProfileDeatils/ada@example.com", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":200,"result":"success","data":[{"_id":"64f1a2b3c4d5e6f708192a3b","customerType":"Individual","CustomerBillingAddress":{"firstName":"Ada","emailId":"ada@example.com","phoneNumber":"5551234567"}}]}`))
	})

	profile, err := client.GetCustomerProfile(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "64f1a2b3c4d5e6f708192a3b", profile.ID)
	assert.Equal(t, "Ada", profile.CustomerBillingAddress.FirstName)
	assert.Equal(t, "5551234567", profile.CustomerBillingAddress.PhoneNumber)
}

func TestGetCustomerProfileMissIsNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":200,"result":"success","data":[]}`))
	})

	_, err := client.GetCustomerProfile(context.Background(), "nobody@example.com")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetProProfile(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pro/getproprofileNoJWT/pro-login-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":200,"result":"success","data":{"proId":"pro-1","loginId":"pro-login-1","businessName":"Bob's Fencing","socialMediaLinks":{"yelpRating":4.5,"googleRating":"4.8"}}}`))
	})

	profile, err := client.GetProProfile(context.Background(), "pro-login-1")
	require.NoError(t, err)
	assert.Equal(t, "Bob's Fencing", profile.BusinessName)
	// Ratings arrive as either numbers or quoted strings.
	assert.Equal(t, json.Number("4.5"), profile.SocialMediaLinks.YelpRating)
	assert.Equal(t, json.Number("4.8"), profile.SocialMediaLinks.GoogleRating)
}

func TestGetSubCategoriesByCatCode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/master/getSubCategoriesByCatCode/FEN", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":200,"result":"success","data":[{"cat_code":"FEN","subcat_code":"FEN-WOOD","bapPrice":"149.99"}]}`))
	})

	subs, err := client.GetSubCategoriesByCatCode(context.Background(), "FEN")
	require.NoError(t, err)
	require.Len(t, subs, 1)

	price, ok := leads.ResolvePrice(subs, "FEN", "FEN-WOOD")
	require.True(t, ok)
	assert.Equal(t, 149.99, price)
}

func TestCreateLead(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/lead/createlead", r.URL.Path)
		var got leads.NewCustomerLead
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "Ada", got.FirstName)
		_, _ = w.Write([]byte(`{"status":200,"result":"success","data":{"leadData":{"leadId":"LD-1001","todayTime":"10:00 AM","customerType":"Individual"}}}`))
	})

	data, err := client.CreateLead(context.Background(), leads.NewCustomerLead{FirstName: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "LD-1001", data.LeadID)
	assert.Equal(t, "10:00 AM", data.TodayTime)
}

func TestCreateExistingLead(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/lead/createExistlead", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":200,"result":"success","data":{"leadData":{"leadId":"LD-2002"}}}`))
	})

	data, err := client.CreateExistingLead(context.Background(), leads.ExistingCustomerLead{})
	require.NoError(t, err)
	assert.Equal(t, "LD-2002", data.LeadID)
}

func TestCreateLeadFailureEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":500,"result":"error","data":null}`))
	})

	_, err := client.CreateLead(context.Background(), leads.NewCustomerLead{})
	require.ErrorIs(t, err, ErrMalformedResponse)
}

func TestDirectBookingCustomer(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/lead/direct-booking-customer", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":200,"result":"success","data":{"directBookingLead":{"directBookingLeadId":"DBL-7","createdOn":"2026-08-30T12:00:00Z"}}}`))
	})

	result, err := client.DirectBookingCustomer(context.Background(), leads.DirectBookingLead{})
	require.NoError(t, err)
	assert.Equal(t, "DBL-7", result.LeadID)
	assert.Equal(t, "2026-08-30T12:00:00Z", result.CreatedAt)
}

func TestMatchingProsForLead(t *testing.T) {
	var called bool
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, "/lead/matchingprosforlead", r.URL.Path)
		var got leads.MatchingProsPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "NO", got.IsServiceEmergency)
		_, _ = w.Write([]byte(`{"status":200,"result":"success","data":{}}`))
	})

	err := client.MatchingProsForLead(context.Background(), leads.MatchingProsPayload{LeadID: "LD-1001", IsServiceEmergency: "NO"})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestUploadFiles(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fileupload/multipleImageUploader", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		files := r.MultipartForm.File["images"]
		require.Len(t, files, 2)
		assert.Equal(t, "deck.jpg", files[0].Filename)
		_, _ = w.Write([]byte(`{"status":200,"result":"success","data":{"uploadedImagePath":[{"location":"https://cdn/deck.jpg"},{"location":"https://cdn/walkthrough.mp4"}]}}`))
	})

	urls, err := client.UploadFiles(context.Background(), map[string][]byte{
		"deck.jpg":        []byte("jpg-bytes"),
		"walkthrough.mp4": []byte("mp4-bytes"),
	}, []string{"deck.jpg", "walkthrough.mp4"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn/deck.jpg", "https://cdn/walkthrough.mp4"}, urls)
}
