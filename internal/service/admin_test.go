package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"content_sync/internal/domain"
	"content_sync/internal/logging"
	"content_sync/internal/service/mocks"
	"content_sync/internal/testutil"
)

type AdminServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	source    *mocks.MockContentSource
	taxonomy  *mocks.MockTaxonomyStore
	publisher *mocks.MockPublisher
	syncer    *fakeSyncer
	signal    *recordingSignal

	admin *AdminService
	now   time.Time
}

func (s *AdminServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.source = mocks.NewMockContentSource(s.ctrl)
	s.taxonomy = mocks.NewMockTaxonomyStore(s.ctrl)
	s.publisher = mocks.NewMockPublisher(s.ctrl)
	s.syncer = &fakeSyncer{}
	s.signal = &recordingSignal{}
	s.now = time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)

	s.admin = NewAdminService(s.source, s.taxonomy, s.syncer, s.signal, s.publisher, logging.Discard())
	s.admin.now = func() time.Time { return s.now }
}

func (s *AdminServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestAdminServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AdminServiceTestSuite))
}

func (s *AdminServiceTestSuite) TestCreate_QuickSyncsAndPublishes() {
	ctx := context.Background()
	input := domain.Content{Title: "Spring fair", Kind: domain.KindEvent, Status: domain.StatusPublished}

	stored := rawEvent("e1", domain.StatusPublished, 0, 3)
	stored.Title = testutil.Ptr("Spring fair")
	s.source.EXPECT().Insert(gomock.Any(), input).Return(stored, nil)
	s.publisher.EXPECT().Publish(gomock.Any(), domain.ContentEvent{
		Action:    domain.ActionCreated,
		ID:        "e1",
		Kind:      domain.KindEvent,
		Timestamp: s.now,
	}).Return(nil)

	created, err := s.admin.Create(ctx, input)
	s.Require().NoError(err)

	s.Equal("e1", created.ID)
	s.Equal("<p>Body of e1</p>", created.Body)
	s.Equal([]string{"e1"}, s.syncer.quick)
	s.Empty(s.signal.received())
}

func (s *AdminServiceTestSuite) TestCreate_RequiresTitle() {
	_, err := s.admin.Create(context.Background(), domain.Content{Title: "  "})

	s.Require().Error(err)
	s.True(errors.Is(err, domain.ErrValidationRejected))
}

func (s *AdminServiceTestSuite) TestCreate_RejectsUnknownKind() {
	_, err := s.admin.Create(context.Background(), domain.Content{Title: "x", Kind: "podcast"})

	s.Require().Error(err)
	s.True(errors.Is(err, domain.ErrValidationRejected))
}

func (s *AdminServiceTestSuite) TestCreate_SourceError() {
	s.source.EXPECT().Insert(gomock.Any(), gomock.Any()).
		Return(domain.RawContent{}, domain.ErrSourceUnavailable)

	_, err := s.admin.Create(context.Background(), domain.Content{Title: "x"})

	s.Require().Error(err)
	s.True(errors.Is(err, domain.ErrSourceUnavailable))
	s.Empty(s.syncer.quick)
}

func (s *AdminServiceTestSuite) TestUpdate_FailedQuickSyncInvalidates() {
	s.syncer.quickErr = errors.New("remote down")
	patch := domain.ContentPatch{Status: testutil.Ptr(domain.StatusDraft)}

	s.source.EXPECT().Update(gomock.Any(), "a1", patch).Return(rawArticle("a1", domain.StatusDraft, 1), nil)
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	updated, err := s.admin.Update(context.Background(), "a1", patch)
	s.Require().NoError(err)

	s.Equal(domain.StatusDraft, updated.Status)
	s.Equal([]string{"a1"}, s.signal.received())
}

func (s *AdminServiceTestSuite) TestUpdate_EmptyTitleRejected() {
	_, err := s.admin.Update(context.Background(), "a1", domain.ContentPatch{Title: testutil.Ptr("")})

	s.True(errors.Is(err, domain.ErrValidationRejected))
}

func (s *AdminServiceTestSuite) TestUpdate_NotFound() {
	s.source.EXPECT().Update(gomock.Any(), "zz", gomock.Any()).Return(domain.RawContent{}, domain.ErrNotFound)

	_, err := s.admin.Update(context.Background(), "zz", domain.ContentPatch{Title: testutil.Ptr("x")})

	s.True(errors.Is(err, domain.ErrNotFound))
	s.Empty(s.syncer.quick)
}

func (s *AdminServiceTestSuite) TestDelete() {
	s.source.EXPECT().Delete(gomock.Any(), "a1").Return(nil)
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, event domain.ContentEvent) error {
			s.Equal(domain.ActionDeleted, event.Action)
			s.Equal("a1", event.ID)
			return nil
		})

	s.Require().NoError(s.admin.Delete(context.Background(), "a1"))
	s.Equal([]string{"a1"}, s.syncer.quick)
}

func (s *AdminServiceTestSuite) TestList_IncludesDrafts() {
	q := domain.Query{Kind: domain.KindArticle, Limit: 50}
	s.source.EXPECT().Select(gomock.Any(), q).Return([]domain.RawContent{
		rawArticle("d1", domain.StatusDraft, 2),
		rawArticle("a1", domain.StatusPublished, 1),
	}, nil)

	got, err := s.admin.List(context.Background(), q)
	s.Require().NoError(err)
	s.Equal([]string{"d1", "a1"}, ids(got))
}

func (s *AdminServiceTestSuite) TestGet() {
	s.source.EXPECT().SelectByID(gomock.Any(), "d1").Return(rawArticle("d1", domain.StatusDraft, 2), nil)

	got, err := s.admin.Get(context.Background(), "d1")
	s.Require().NoError(err)
	s.Equal(domain.StatusDraft, got.Status)
}

func (s *AdminServiceTestSuite) TestTaxonomy() {
	s.taxonomy.EXPECT().Categories(gomock.Any()).Return([]domain.TaxonomyTerm{{Name: "Culture", Count: 3}}, nil)
	s.taxonomy.EXPECT().Tags(gomock.Any()).Return([]domain.TaxonomyTerm{{Name: "jazz", Count: 1}}, nil)

	got, err := s.admin.Taxonomy(context.Background())
	s.Require().NoError(err)
	s.Equal("Culture", got.Categories[0].Name)
	s.Equal(1, got.Tags[0].Count)
}

func (s *AdminServiceTestSuite) TestTriggers() {
	_, err := s.admin.TriggerFullSync(context.Background(), false)
	s.Require().NoError(err)
	_, err = s.admin.TriggerFullSync(context.Background(), true)
	s.Require().NoError(err)
	s.Require().NoError(s.admin.TriggerQuickSync(context.Background(), "a7"))
	s.admin.Invalidate(GlobalScope)

	s.Equal(2, s.syncer.fullCount())
	s.Equal(1, s.syncer.forced)
	s.Equal([]string{"a7"}, s.syncer.quick)
	s.Equal([]string{GlobalScope}, s.signal.received())
}
