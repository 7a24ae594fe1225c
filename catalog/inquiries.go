package catalog

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/catalog-service/cache"
	"github.com/saiset-co/catalog-service/types"
	"github.com/saiset-co/catalog-service/utils"
)

const (
	DefaultInquiryLimit = 20
	MaxInquiryLimit     = 100

	InquiriesTTL = time.Minute

	notifyTimeout = 30 * time.Second
)

var inquiryStatuses = map[string]bool{
	types.InquiryStatusNew:       true,
	types.InquiryStatusContacted: true,
	types.InquiryStatusQuoted:    true,
	types.InquiryStatusClosed:    true,
}

var inquirySources = map[string]bool{
	types.InquirySourceWebsite:     true,
	types.InquirySourceContactForm: true,
	types.InquirySourceEmail:       true,
	types.InquirySourcePhone:       true,
}

type InquiryService struct {
	db        types.DatabaseManager
	cache     types.CacheManager
	notifier  types.Notifier
	validator *Validator
	logger    types.Logger

	list func(ctx context.Context, filter types.InquiryFilter) (types.InquiryList, error)
}

func NewInquiryService(db types.DatabaseManager, c types.CacheManager, notifier types.Notifier, validator *Validator, logger types.Logger) *InquiryService {
	if c == nil {
		c = cache.NewNoopCache()
	}

	s := &InquiryService{
		db:        db,
		cache:     c,
		notifier:  notifier,
		validator: validator,
		logger:    logger,
	}

	s.list = cache.WithCache(c, s.loadInquiries, func(f types.InquiryFilter) string {
		return cache.InquiriesKey(f.Page, f.Limit, f.Status)
	}, InquiriesTTL)

	return s
}

// Submit validates, sanitizes and stores an inquiry, then notifies staff and
// the customer. Notification failures are logged and never fail the request.
func (s *InquiryService) Submit(ctx context.Context, input types.InquiryInput, source string, meta types.RequestMeta) (*types.Inquiry, error) {
	if errs := s.validator.ValidateInquiry(input); len(errs) > 0 {
		return nil, types.NewValidationError(errs)
	}

	if !inquirySources[source] {
		source = types.InquirySourceWebsite
	}

	clean := SanitizeInquiry(input)

	inquiry := types.Inquiry{
		Name:            clean.Name,
		Email:           clean.Email,
		Phone:           clean.Phone,
		Country:         clean.Country,
		Company:         clean.Company,
		ProductInterest: clean.ProductInterest,
		ProductID:       clean.ProductID,
		ProductName:     clean.ProductName,
		Quantity:        clean.Quantity,
		Message:         clean.Message,
		Status:          types.InquiryStatusNew,
		Priority:        types.InquiryPriorityMedium,
		Source:          source,
		IPAddress:       utils.FirstNonEmpty(meta.IPAddress, "unknown"),
		UserAgent:       utils.FirstNonEmpty(meta.UserAgent, "unknown"),
		Notes:           []string{},
	}

	doc, err := toDocument(inquiry)
	if err != nil {
		return nil, err
	}

	ids, err := s.db.CreateDocuments(ctx, types.CreateDocumentsRequest{
		Collection: InquiriesCollection,
		Data:       []map[string]interface{}{doc},
	})
	if err != nil {
		return nil, types.NewAppError(types.KindDatabase, "Failed to save inquiry", err)
	}

	stored, err := s.find(ctx, ids[0])
	if err != nil {
		return nil, err
	}

	removed := cache.InvalidateInquiries(s.cache)

	s.logger.Info("Inquiry received",
		zap.String("id", stored.ID),
		zap.String("source", stored.Source),
		zap.Int("cache_removed", removed))

	s.notify(ctx, stored)

	return stored, nil
}

// NotificationsEnabled reports whether Submit will notify anyone.
func (s *InquiryService) NotificationsEnabled() bool {
	return s.notifier != nil && s.notifier.Enabled()
}

func (s *InquiryService) List(ctx context.Context, filter types.InquiryFilter) (*types.InquiryList, error) {
	list, err := s.list(ctx, NormalizeInquiryFilter(filter))
	if err != nil {
		return nil, err
	}
	return &list, nil
}

// NormalizeInquiryFilter applies paging defaults and drops unknown statuses.
func NormalizeInquiryFilter(filter types.InquiryFilter) types.InquiryFilter {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultInquiryLimit
	}
	filter.Limit = utils.Clamp(filter.Limit, 1, MaxInquiryLimit)

	if !inquiryStatuses[filter.Status] {
		filter.Status = ""
	}

	return filter
}

func (s *InquiryService) loadInquiries(ctx context.Context, filter types.InquiryFilter) (types.InquiryList, error) {
	query := map[string]interface{}{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	docs, total, err := s.db.ReadDocuments(ctx, types.ReadDocumentsRequest{
		Collection: InquiriesCollection,
		Filter:     query,
		Sort:       []types.SortField{{Field: "createdAt", Direction: -1}},
		Skip:       (filter.Page - 1) * filter.Limit,
		Limit:      filter.Limit,
	})
	if err != nil {
		return types.InquiryList{}, types.NewAppError(types.KindDatabase, "Failed to fetch inquiries", err)
	}

	inquiries := make([]types.Inquiry, 0, len(docs))
	for _, doc := range docs {
		inquiry, err := decodeInquiry(doc)
		if err != nil {
			s.logger.Warn("Skipping malformed inquiry", zap.Error(err))
			continue
		}
		inquiries = append(inquiries, inquiry)
	}

	limit := int64(filter.Limit)

	return types.InquiryList{
		Inquiries: inquiries,
		Pagination: types.InquiryPagination{
			Page:  filter.Page,
			Limit: filter.Limit,
			Total: total,
			Pages: (total + limit - 1) / limit,
		},
	}, nil
}

func (s *InquiryService) find(ctx context.Context, id string) (*types.Inquiry, error) {
	docs, _, err := s.db.ReadDocuments(ctx, types.ReadDocumentsRequest{
		Collection: InquiriesCollection,
		Filter:     map[string]interface{}{"id": id},
		Limit:      1,
	})
	if err != nil {
		return nil, types.NewAppError(types.KindDatabase, "Failed to fetch inquiry", err)
	}

	if len(docs) == 0 {
		return nil, types.NewAppError(types.KindNotFound, "Inquiry not found", types.ErrInquiryNotFound)
	}

	inquiry, err := decodeInquiry(docs[0])
	if err != nil {
		return nil, types.NewAppError(types.KindInternal, "Failed to fetch inquiry", err)
	}
	return &inquiry, nil
}

func (s *InquiryService) notify(ctx context.Context, inquiry *types.Inquiry) {
	if !s.NotificationsEnabled() {
		s.logger.Warn("No notification channel configured, skipping notifications",
			zap.String("inquiry_id", inquiry.ID))
		return
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := s.notifier.NotifyInquiry(notifyCtx, inquiry); err != nil {
		s.logger.Error("Failed to send inquiry notification",
			zap.String("inquiry_id", inquiry.ID),
			zap.Error(err))
	}
}
