package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/ignite/campaign-dashboard/internal/auth"
	"github.com/ignite/campaign-dashboard/internal/domain"
	"github.com/ignite/campaign-dashboard/internal/service/campaign"
	"github.com/ignite/campaign-dashboard/internal/service/contact"
	"github.com/ignite/campaign-dashboard/internal/service/delivery"
	"github.com/ignite/campaign-dashboard/internal/service/dispatch"
	"github.com/ignite/campaign-dashboard/internal/service/suppression"
	"github.com/ignite/campaign-dashboard/internal/service/tag"
	"github.com/ignite/campaign-dashboard/internal/service/template"
	"github.com/ignite/campaign-dashboard/internal/storage"
)

// ContactService is implemented by *contact.Service.
type ContactService interface {
	Get(ctx context.Context, ownerID, id string) (*domain.Contact, error)
	List(ctx context.Context, ownerID string, f contact.ListFilter) ([]domain.Contact, int, error)
	Create(ctx context.Context, ownerID string, in contact.CreateInput) (*domain.Contact, error)
	Update(ctx context.Context, ownerID, id string, u contact.UpdateFields) (*domain.Contact, error)
	Delete(ctx context.Context, ownerID, id string) error
	AddTags(ctx context.Context, ownerID, id string, tags []string) (*domain.Contact, error)
	RemoveTags(ctx context.Context, ownerID, id string, tags []string) (*domain.Contact, error)
	Resolve(ctx context.Context, ownerID string, f contact.Filter) ([]domain.Contact, error)
	Import(ctx context.Context, ownerID string, r io.Reader, extraTags []string) (*contact.ImportResult, error)
}

// TagService is implemented by *tag.Service.
type TagService interface {
	List(ctx context.Context, ownerID string) ([]domain.Tag, error)
	Create(ctx context.Context, ownerID string, in tag.CreateInput) (*domain.Tag, error)
	Update(ctx context.Context, ownerID, id string, u tag.UpdateFields) (*domain.Tag, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// TemplateService is implemented by *template.Service.
type TemplateService interface {
	Get(ctx context.Context, ownerID, id string) (*domain.Template, error)
	List(ctx context.Context, ownerID string, f template.ListFilter) ([]domain.Template, int, error)
	Create(ctx context.Context, ownerID string, in template.CreateInput) (*domain.Template, error)
	Update(ctx context.Context, ownerID, id string, u template.UpdateFields) (*domain.Template, error)
	Delete(ctx context.Context, ownerID, id string) error
	Preview(ctx context.Context, ownerID, id string, in template.PreviewInput) (*template.Preview, error)
}

// CampaignService is implemented by *campaign.Service.
type CampaignService interface {
	Get(ctx context.Context, ownerID, id string) (*domain.Campaign, error)
	List(ctx context.Context, ownerID string, f campaign.ListFilter) ([]domain.Campaign, int, error)
	Create(ctx context.Context, ownerID string, in campaign.CreateInput) (*domain.Campaign, error)
	Update(ctx context.Context, ownerID, id string, u campaign.UpdateFields) (*domain.Campaign, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// JobLister lists the scheduled occurrences of a campaign.
type JobLister interface {
	ListByCampaign(ctx context.Context, ownerID, campaignID string) ([]domain.CampaignJob, error)
}

// SuppressionService is implemented by *suppression.Service.
type SuppressionService interface {
	Suppress(ctx context.Context, ownerID, email string, reason domain.SuppressionReason) (*domain.Suppression, error)
	Remove(ctx context.Context, ownerID, email string) error
	List(ctx context.Context, ownerID string, f suppression.ListFilter) ([]domain.Suppression, int, error)
	GetStats(ctx context.Context, ownerID string) (*suppression.Stats, error)
}

// DeliveryService is implemented by *delivery.Service.
type DeliveryService interface {
	List(ctx context.Context, userID string, f delivery.ListFilter) ([]domain.DeliveryLogEntry, int, error)
	CheckQuota(ctx context.Context, userID string, now time.Time) (int, error)
	Stats(ctx context.Context, userID string, now time.Time) (*domain.DeliveryStats, error)
	Log(ctx context.Context, userID, action string, status domain.LogStatus, details any)
}

// Dispatcher is implemented by *dispatch.Service.
type Dispatcher interface {
	SendEmail(ctx context.Context, userID string, in dispatch.SendEmailInput) (*domain.SendResult, error)
	SendCampaign(ctx context.Context, userID, campaignID string, opts dispatch.SendOptions) (*dispatch.CampaignResult, error)
	ScheduleCampaign(ctx context.Context, userID, campaignID string, in dispatch.ScheduleInput) (*domain.CampaignJob, error)
	Unschedule(ctx context.Context, userID, campaignID string) error
}

// Services are the collaborators behind the HTTP handlers.
type Services struct {
	Contacts     ContactService
	Tags         TagService
	Templates    TemplateService
	Campaigns    CampaignService
	Jobs         JobLister
	Suppressions SuppressionService
	Delivery     DeliveryService
	Dispatch     Dispatcher

	// Imports reads contact files from object storage and keeps import
	// reports. Optional.
	Imports storage.Store
	// ReportBucket is the only bucket imports are read from and where
	// import reports are written.
	ReportBucket string
}

// Handlers holds the HTTP handlers of the dashboard API.
type Handlers struct {
	svc Services
	now func() time.Time
}

// NewHandlers creates the API handlers.
func NewHandlers(svc Services) *Handlers {
	return &Handlers{svc: svc, now: time.Now}
}

func ownerID(r *http.Request) string {
	return auth.UserID(r.Context())
}

// orEmpty keeps empty lists rendering as [] rather than null.
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
