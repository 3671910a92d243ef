package leads

import (
	"strings"
	"time"

	"github.com/topproz/leadchat/internal/extract"
	"github.com/topproz/leadchat/internal/transcript"
)

// NewCustomerInput collects everything a new-customer lead needs: the
// transcript-derived fields plus the zip master row resolved for the service
// zip code.
type NewCustomerInput struct {
	Fields        extract.CustomerFields
	Zip           ZipData
	Questions     []extract.QA
	SourceType    extract.SourceType
	AcceptedTerms bool
	Images        []string
	Service       *transcript.ServiceContext
}

// BuildNewCustomerLead assembles the create-lead payload for a caller with no
// stored profile. The business address reuses the zip lookup's city and state
// but keeps the zip code exactly as the caller typed it.
func BuildNewCustomerLead(in NewCustomerInput) NewCustomerLead {
	return NewCustomerLead{
		FirstName:    in.Fields.FirstName,
		LastName:     in.Fields.LastName,
		CustomerType: in.Fields.CustomerType,
		BusinessName: in.Fields.BusinessName,
		EmailID:      in.Fields.Email,
		MobileNumber: in.Fields.Mobile,
		BusinessAddress: Address{
			StreetAddress: in.Fields.BusinessAddress,
			City:          in.Zip.City,
			State:         in.Zip.State,
			Zipcode:       in.Fields.ServiceZip,
		},
		ServiceAddress: Address{
			StreetAddress: in.Fields.ServiceStreet,
			City:          in.Zip.City,
			State:         in.Zip.State,
			Zipcode:       in.Zip.Zipcode,
		},
		Questions:                  in.Questions,
		SourceType:                 in.SourceType,
		AcceptedTermsAndConditions: in.AcceptedTerms,
		Attachments:                in.Images,
		Image:                      in.Images,
		Service:                    in.Service,
	}
}

// ExistingCustomerInput pairs a stored profile with the transcript-derived
// service details for a logged-in caller.
type ExistingCustomerInput struct {
	Profile       CustomerProfile
	LoginID       string
	StreetAddress string
	Zip           ZipData
	Questions     []extract.QA
	SourceType    extract.SourceType
	AcceptedTerms bool
	Images        []string
	Service       *transcript.ServiceContext
}

// BuildExistingCustomerLead assembles the create-lead payload for a logged-in
// caller. Identity and billing come from the stored profile; only the service
// address comes from the transcript.
func BuildExistingCustomerLead(in ExistingCustomerInput) ExistingCustomerLead {
	billing := in.Profile.CustomerBillingAddress
	return ExistingCustomerLead{
		FirstName:    billing.FirstName,
		LastName:     billing.LastName,
		CustomerType: in.Profile.CustomerType,
		EmailID:      billing.EmailID,
		MobileNumber: billing.PhoneNumber,
		LoginID:      in.LoginID,
		BusinessAddress: Address{
			StreetAddress: billing.Address,
			City:          billing.City,
			State:         billing.State,
			Zipcode:       billing.ZipCode,
		},
		ServiceAddress: Address{
			StreetAddress: in.StreetAddress,
			City:          in.Zip.City,
			State:         in.Zip.State,
			Zipcode:       in.Zip.Zipcode,
		},
		Questions:                  in.Questions,
		SourceType:                 in.SourceType,
		AcceptedTermsAndConditions: in.AcceptedTerms,
		Attachments:                in.Images,
		Image:                      in.Images,
		Service:                    in.Service,
	}
}

// BookingCustomer is the caller identity used for a direct booking, sourced
// either from a stored profile or from the transcript.
type BookingCustomer struct {
	FirstName      string
	LastName       string
	MobileNumber   string
	EmailID        string
	ServiceAddress Address
	IsUserNotExist bool
}

// DirectBookingInput collects everything a direct-booking or quote lead
// needs, including the already-resolved price and pro profile.
type DirectBookingInput struct {
	Method        string
	Customer      BookingCustomer
	Pro           ProProfile
	Service       *transcript.ServiceContext
	BookingDate   *time.Time
	BookingTime   *time.Time
	Price         float64
	Images        []string
	AcceptedTerms bool
	Now           time.Time
}

// BuildDirectBookingLead assembles the direct-booking payload. Booking date
// and time are included only when the method is "Book a Pro"; a quote request
// carries explicit nulls.
func BuildDirectBookingLead(in DirectBookingInput) DirectBookingLead {
	var projectName string
	if in.Service != nil {
		projectName = in.Service.Category + in.Service.SubCategory
	}

	var bookingDate, bookingTime *string
	if in.Method == MethodBookAPro {
		if in.BookingDate != nil {
			s := in.BookingDate.Format("1/2/2006")
			bookingDate = &s
		}
		if in.BookingTime != nil {
			s := in.BookingTime.Format("3:04:05 PM")
			bookingTime = &s
		}
	}

	attachments := make([]Attachment, 0, len(in.Images))
	for _, img := range in.Images {
		attachments = append(attachments, newAttachment(img))
	}

	return DirectBookingLead{
		ProjectName:                projectName,
		ProjectDescription:         "",
		FirstName:                  in.Customer.FirstName,
		LastName:                   in.Customer.LastName,
		MobileNumber:               in.Customer.MobileNumber,
		DBLeadEmailID:              in.Customer.EmailID,
		LoginID:                    in.Pro.LoginID,
		ProLoginID:                 in.Pro.LoginID,
		ProID:                      in.Pro.ProID,
		ProEmailID:                 in.Pro.EmailID,
		ProMobileNumber:            in.Pro.MobileNumber,
		ProName:                    in.Pro.BusinessName,
		IsUserNotExist:             in.Customer.IsUserNotExist,
		IsGetquotes:                in.Method == MethodGetAQuote,
		IsBookapro:                 in.Method == MethodBookAPro,
		BookingDate:                bookingDate,
		BookingTime:                bookingTime,
		DBLPrice:                   in.Price,
		ServiceAddress:             in.Customer.ServiceAddress,
		Attachments:                attachments,
		Service:                    in.Service,
		HasEmailSubscriptionFlag:   true,
		AcceptedTermsAndConditions: in.AcceptedTerms,
		SourceType:                 bookingSourceType(in.Method),
		CreatedOn:                  in.Now.UTC().Format(time.RFC3339),
		ProInfo: ProInfo{
			FirstName:       in.Pro.FirstName,
			LastName:        in.Pro.LastName,
			MobileNumber:    in.Pro.MobileNumber,
			BusinessAddress: in.Pro.BusinessAddress.StreetAddress,
			City:            in.Pro.City,
			State:           in.Pro.State,
			Zipcode:         in.Pro.Zipcode,
			BusinessName:    in.Pro.BusinessName,
			YelpRating:      in.Pro.SocialMediaLinks.YelpRating,
			GoogleRating:    in.Pro.SocialMediaLinks.GoogleRating,
			ProID:           in.Pro.ProID,
			LoginID:         in.Pro.LoginID,
			CompanyLogo:     in.Pro.CompanyLogo,
		},
	}
}

func bookingSourceType(method string) extract.SourceType {
	if method == MethodBookAPro {
		return extract.SourceDirectBooking
	}
	return extract.SourceGetAQuote
}

func newAttachment(url string) Attachment {
	name := url
	if i := strings.LastIndex(url, "/"); i >= 0 {
		name = url[i+1:]
	}
	var ext string
	if i := strings.LastIndex(url, "."); i >= 0 {
		ext = url[i+1:]
	}
	return Attachment{FileName: name, FileURL: url, Extension: ext}
}

// BuildMatchingProsPayload seeds the matching-pros notification from the
// LeadData echoed by a successful create call. customerRecordID is the CRM
// record the lead belongs to, which differs between the new-customer and
// existing-customer flows.
func BuildMatchingProsPayload(lead LeadData, customerRecordID string, service transcript.ServiceContext, now time.Time) MatchingProsPayload {
	return MatchingProsPayload{
		CustomerType:               lead.CustomerType,
		BusinessName:               lead.BusinessName,
		Zipcode:                    lead.ServiceAddress.Zipcode,
		CategoryCode:               service.CategoryCode,
		SubCategoryCode:            service.SubCategoryCode,
		CustomerID:                 lead.CustomerID,
		Customer:                   customerRecordID,
		LeadID:                     lead.LeadID,
		LoginID:                    lead.LoginID,
		FirstName:                  lead.BasicDetails.FirstName,
		LastName:                   lead.BasicDetails.LastName,
		MobileNumber:               lead.BasicDetails.MobileNumber,
		EmailID:                    lead.BasicDetails.EmailID,
		StreetAddress:              lead.ServiceAddress.StreetAddress,
		City:                       lead.ServiceAddress.City,
		State:                      lead.ServiceAddress.State,
		IsServiceEmergency:         "NO",
		Service:                    lead.Service,
		Questions:                  lead.Questions,
		AcceptedTermsAndConditions: lead.AcceptedTermsAndConditions,
		BestRatingProsFlag:         false,
		Description:                lead.AboutProject.Description,
		Attachments:                lead.AboutProject.Attachments,
		CreatedBy:                  lead.BasicDetails.EmailID,
		CreatedOn:                  lead.CreatedAt,
		ModifiedBy:                 lead.BasicDetails.EmailID,
		ModifiedOn:                 now.UTC().Format(time.RFC3339),
		SourceType:                 lead.SourceType,
	}
}
