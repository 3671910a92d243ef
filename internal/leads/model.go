// Package leads holds the CRM-facing lead models and the builders that
// assemble them from transcript-derived fields. Builders are pure; every
// remote lookup result they need is passed in.
package leads

import (
	"encoding/json"

	"github.com/topproz/leadchat/internal/extract"
	"github.com/topproz/leadchat/internal/transcript"
)

// Booking method labels as they appear in the transcript.
const (
	MethodBookAPro  = "Book a Pro"
	MethodGetAQuote = "Get a Quote"
)

// Address is the CRM's postal address shape, shared by billing and service
// addresses.
type Address struct {
	StreetAddress string `json:"streetAddress"`
	City          string `json:"city"`
	State         string `json:"state"`
	Zipcode       string `json:"zipcode"`
}

// ZipData is one row of the CRM zipcode master table.
type ZipData struct {
	City    string `json:"city"`
	State   string `json:"state"`
	Zipcode string `json:"zipcode"`
}

// CustomerBillingAddress is the identity block of a stored customer profile.
// The CRM spells the zip field differently here than in Address.
type CustomerBillingAddress struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	EmailID     string `json:"emailId"`
	PhoneNumber string `json:"phoneNumber"`
	Address     string `json:"address"`
	City        string `json:"city"`
	State       string `json:"state"`
	ZipCode     string `json:"zipCode"`
}

// CustomerProfile is a stored CRM customer record.
type CustomerProfile struct {
	ID                     string                 `json:"_id"`
	CustomerType           string                 `json:"customerType"`
	CustomerBillingAddress CustomerBillingAddress `json:"CustomerBillingAddress"`
}

// SocialMediaLinks carries a pro's external review ratings.
type SocialMediaLinks struct {
	YelpRating   json.Number `json:"yelpRating"`
	GoogleRating json.Number `json:"googleRating"`
}

// ProProfile is a pro record as returned by the CRM profile endpoint.
type ProProfile struct {
	ProID            string           `json:"proId"`
	LoginID          string           `json:"loginId"`
	EmailID          string           `json:"emailId"`
	MobileNumber     string           `json:"mobileNumber"`
	FirstName        string           `json:"firstName"`
	LastName         string           `json:"lastName"`
	BusinessName     string           `json:"businessName"`
	BusinessAddress  Address          `json:"businessAddress"`
	City             string           `json:"city"`
	State            string           `json:"state"`
	Zipcode          string           `json:"zipcode"`
	CompanyLogo      string           `json:"companyLogo"`
	SocialMediaLinks SocialMediaLinks `json:"socialMediaLinks"`
}

// BasicDetails is the identity block the CRM echoes back inside LeadData.
type BasicDetails struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	MobileNumber string `json:"mobileNumber"`
	EmailID      string `json:"emailId"`
}

// AboutProject is the project block the CRM echoes back inside LeadData.
type AboutProject struct {
	Description string   `json:"description"`
	Attachments []string `json:"attachments"`
}

// LeadData is the CRM's record of a created lead, echoed in the create
// response and used verbatim to seed the matching-pros request.
type LeadData struct {
	LeadID                     string                    `json:"leadId"`
	TodayTime                  string                    `json:"todayTime"`
	CustomerType               string                    `json:"customerType"`
	BusinessName               string                    `json:"businessName"`
	ServiceAddress             Address                   `json:"serviceAddress"`
	CustomerID                 string                    `json:"customerId"`
	ID                         string                    `json:"_id"`
	LoginID                    string                    `json:"loginId"`
	BasicDetails               BasicDetails              `json:"basicDetails"`
	Service                    transcript.ServiceContext `json:"service"`
	Questions                  []extract.QA              `json:"questions"`
	AcceptedTermsAndConditions bool                      `json:"acceptedTermsAndConditions"`
	AboutProject               AboutProject              `json:"aboutProject"`
	CreatedAt                  string                    `json:"createdAt"`
	SourceType                 string                    `json:"sourceType"`
}

// SubCategory is one row of the CRM subcategory master table. BapPrice is a
// json.Number because the CRM serves it as either a number or a quoted string.
type SubCategory struct {
	CatCode    string      `json:"cat_code"`
	SubcatCode string      `json:"subcat_code"`
	BapPrice   json.Number `json:"bapPrice"`
}

// ResolvePrice finds the booking price for a category/subcategory pair. The
// second return is false when no row matches or its price does not parse.
func ResolvePrice(subs []SubCategory, categoryCode, subCategoryCode string) (float64, bool) {
	for _, sub := range subs {
		if sub.CatCode != categoryCode || sub.SubcatCode != subCategoryCode {
			continue
		}
		price, err := sub.BapPrice.Float64()
		if err != nil {
			return 0, false
		}
		return price, true
	}
	return 0, false
}

// NewCustomerLead is the create-lead payload for a caller with no stored
// profile.
type NewCustomerLead struct {
	FirstName                  string                     `json:"firstName"`
	LastName                   string                     `json:"lastName"`
	CustomerType               string                     `json:"customerType"`
	BusinessName               string                     `json:"businessName"`
	EmailID                    string                     `json:"emailId"`
	MobileNumber               string                     `json:"mobileNumber"`
	BusinessAddress            Address                    `json:"businessAddress"`
	ServiceAddress             Address                    `json:"serviceAddress"`
	Questions                  []extract.QA               `json:"questions"`
	SourceType                 extract.SourceType         `json:"sourceType"`
	AcceptedTermsAndConditions bool                       `json:"acceptedTermsAndConditions"`
	Attachments                []string                   `json:"attachments"`
	Image                      []string                   `json:"image"`
	Service                    *transcript.ServiceContext `json:"service"`
}

// ExistingCustomerLead is the create-lead payload for a logged-in caller,
// built from their stored profile rather than the transcript.
type ExistingCustomerLead struct {
	FirstName                  string                     `json:"firstName"`
	LastName                   string                     `json:"lastName"`
	CustomerType               string                     `json:"customerType"`
	EmailID                    string                     `json:"emailId"`
	MobileNumber               string                     `json:"mobileNumber"`
	LoginID                    string                     `json:"loginId"`
	BusinessAddress            Address                    `json:"businessAddress"`
	ServiceAddress             Address                    `json:"serviceAddress"`
	Questions                  []extract.QA               `json:"questions"`
	SourceType                 extract.SourceType         `json:"sourceType"`
	AcceptedTermsAndConditions bool                       `json:"acceptedTermsAndConditions"`
	Attachments                []string                   `json:"attachments"`
	Image                      []string                   `json:"image"`
	Service                    *transcript.ServiceContext `json:"service"`
}

// Attachment is a direct-booking file reference.
type Attachment struct {
	FileName  string `json:"fileName"`
	FileURL   string `json:"fileUrl"`
	Extension string `json:"extension"`
}

// ProInfo is the pro summary embedded in a direct-booking lead.
type ProInfo struct {
	FirstName       string      `json:"firstName"`
	LastName        string      `json:"lastName"`
	MobileNumber    string      `json:"mobileNumber"`
	BusinessAddress string      `json:"businessAddress"`
	City            string      `json:"city"`
	State           string      `json:"state"`
	Zipcode         string      `json:"zipcode"`
	BusinessName    string      `json:"businessName"`
	YelpRating      json.Number `json:"yelpRating"`
	GoogleRating    json.Number `json:"googleRating"`
	ProID           string      `json:"proId"`
	LoginID         string      `json:"loginId"`
	CompanyLogo     string      `json:"companyLogo"`
}

// DirectBookingLead is the payload for booking a specific pro directly or
// requesting a quote from one.
type DirectBookingLead struct {
	ProjectName                string                     `json:"projectName"`
	ProjectDescription         string                     `json:"projectDescription"`
	FirstName                  string                     `json:"firstName"`
	LastName                   string                     `json:"lastName"`
	MobileNumber               string                     `json:"mobileNumber"`
	DBLeadEmailID              string                     `json:"DBLeadEmailId"`
	LoginID                    string                     `json:"loginId"`
	ProLoginID                 string                     `json:"proLoginId"`
	ProID                      string                     `json:"proId"`
	ProEmailID                 string                     `json:"proEmailId"`
	ProMobileNumber            string                     `json:"proMobileNumber"`
	ProName                    string                     `json:"proName"`
	IsUserNotExist             bool                       `json:"isUserNotExist"`
	IsGetquotes                bool                       `json:"isGetquotes"`
	IsBookapro                 bool                       `json:"isBookapro"`
	BookingDate                *string                    `json:"bookingDate"`
	BookingTime                *string                    `json:"bookingTime"`
	DBLPrice                   float64                    `json:"DBLPrice"`
	ServiceAddress             Address                    `json:"serviceAddress"`
	Attachments                []Attachment               `json:"attachments"`
	Service                    *transcript.ServiceContext `json:"service"`
	HasEmailSubscriptionFlag   bool                       `json:"hasEmailSubscriptionFlag"`
	AcceptedTermsAndConditions bool                       `json:"acceptedTermsAndConditions"`
	SourceType                 extract.SourceType         `json:"sourceType"`
	CreatedOn                  string                     `json:"createdOn"`
	ProInfo                    ProInfo                    `json:"proInfo"`
}

// MatchingProsPayload asks the CRM to notify pros matching a created lead.
// Nearly every field is copied from the LeadData the create call returned.
type MatchingProsPayload struct {
	CustomerType               string                    `json:"customerType"`
	BusinessName               string                    `json:"businessName"`
	Zipcode                    string                    `json:"zipcode"`
	CategoryCode               string                    `json:"categoryCode"`
	SubCategoryCode            string                    `json:"subCategoryCode"`
	CustomerID                 string                    `json:"customerId"`
	Customer                   string                    `json:"customer"`
	LeadID                     string                    `json:"leadId"`
	LoginID                    string                    `json:"loginId"`
	FirstName                  string                    `json:"firstName"`
	LastName                   string                    `json:"lastName"`
	MobileNumber               string                    `json:"mobileNumber"`
	EmailID                    string                    `json:"emailId"`
	StreetAddress              string                    `json:"streetAddress"`
	City                       string                    `json:"city"`
	State                      string                    `json:"state"`
	IsServiceEmergency         string                    `json:"isServiceEmergency"`
	Service                    transcript.ServiceContext `json:"service"`
	Questions                  []extract.QA              `json:"questions"`
	AcceptedTermsAndConditions bool                      `json:"acceptedTermsAndConditions"`
	BestRatingProsFlag         bool                      `json:"bestRatingProsFlag"`
	Description                string                    `json:"description"`
	Attachments                []string                  `json:"attachments"`
	CreatedBy                  string                    `json:"createdBy"`
	CreatedOn                  string                    `json:"createdOn"`
	ModifiedBy                 string                    `json:"modifiedBy"`
	ModifiedOn                 string                    `json:"modifiedOn"`
	SourceType                 string                    `json:"sourceType"`
}
