package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"ethesis-api/config"
	"ethesis-api/models"

	"gorm.io/gorm"
)

const (
	dashboardFeedLimit      = 5
	dashboardMilestoneLimit = 6
)

// pendingStatusCondition matches every stored status that models.ResolveStatus reads as pending.
const pendingStatusCondition = "theses.status NOT IN ('approved', 'rejected')"

type StatusCounts struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

func (c *StatusCounts) add(status string) {
	switch models.ResolveStatus(status) {
	case models.ThesisStatusApproved:
		c.Approved++
	case models.ThesisStatusRejected:
		c.Rejected++
	default:
		c.Pending++
	}
}

type UserBrief struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type TitleBrief struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

type ActiveThesisSummary struct {
	ID            uint         `json:"id"`
	Title         string       `json:"title"`
	CollegeName   *string      `json:"college_name"`
	Adviser       *UserBrief   `json:"adviser"`
	StatusCounts  StatusCounts `json:"status_counts"`
	TotalChapters int          `json:"total_chapters"`
	CreatedAt     time.Time    `json:"created_at"`
}

type AttentionItem struct {
	ID          uint       `json:"id"`
	Chapter     string     `json:"chapter"`
	Status      string     `json:"status"`
	SubmittedAt time.Time  `json:"submitted_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ThesisTitle TitleBrief `json:"thesis_title"`
	Link        string     `json:"link"`

	activityAt time.Time
}

type Milestone struct {
	Kind        string     `json:"kind"`
	At          time.Time  `json:"at"`
	ThesisTitle TitleBrief `json:"thesis_title"`
}

type TitleWithPending struct {
	ID              uint       `json:"id"`
	Title           string     `json:"title"`
	Leader          *UserBrief `json:"leader,omitempty"`
	PendingChapters int        `json:"pending_chapters"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type PendingReview struct {
	ID          uint       `json:"id"`
	Chapter     string     `json:"chapter"`
	Status      string     `json:"status"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ThesisTitle TitleBrief `json:"thesis_title"`
	Leader      *UserBrief `json:"leader"`
	Link        string     `json:"link"`
}

type StudentSummary struct {
	ActiveThesis   *ActiveThesisSummary   `json:"active_thesis"`
	NeedsAttention []AttentionItem        `json:"needs_attention"`
	ProgramLevel   *models.ProgramLevel   `json:"program_level"`
	ApprovalForm   *string                `json:"approval_form"`
	Milestones     []Milestone            `json:"milestones"`
	MemberTitles   []TitleWithPending     `json:"member_titles"`
	Profile        models.AcademicProfile `json:"profile"`
}

type TeacherSummary struct {
	TotalTitles        int64              `json:"total_titles"`
	PendingChapters    int64              `json:"pending_chapters"`
	PendingReviews     []PendingReview    `json:"pending_reviews"`
	RecentTitles       []TitleWithPending `json:"recent_titles"`
	UpcomingMilestones []Milestone        `json:"upcoming_milestones"`
}

// DashboardService builds the per-viewer dashboard summaries. It never writes.
type DashboardService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDashboardService(db *gorm.DB) *DashboardService {
	if db == nil {
		db = config.DB
	}
	return &DashboardService{db: db, now: time.Now}
}

// ChapterLink is the API path of one chapter.
func ChapterLink(titleID, thesisID uint) string {
	return fmt.Sprintf("/api/v1/thesis-titles/%d/theses/%d", titleID, thesisID)
}

func (s *DashboardService) StudentSummary(ctx context.Context, viewer *models.User) (*StudentSummary, error) {
	db := s.db.WithContext(ctx)
	profile := viewer.AcademicProfile()
	summary := &StudentSummary{
		NeedsAttention: []AttentionItem{},
		Milestones:     []Milestone{},
		MemberTitles:   []TitleWithPending{},
		Profile:        profile,
	}

	var active models.ThesisTitle
	res := db.Preload("Adviser").
		Preload("Theses", func(tx *gorm.DB) *gorm.DB { return tx.Order("theses.created_at ASC, theses.id ASC") }).
		Where("user_id = ?", viewer.ID).
		Order("created_at DESC, id DESC").
		Limit(1).
		Find(&active)
	if res.Error != nil {
		return nil, fmt.Errorf("load active thesis: %w", res.Error)
	}
	hasActive := res.RowsAffected > 0

	var memberTitles []models.ThesisTitle
	err := db.Preload("Leader").
		Preload("Theses").
		Where("id IN (?)", db.Table("thesis_title_members").Select("thesis_title_id").Where("user_id = ?", viewer.ID)).
		Where("user_id <> ?", viewer.ID).
		Order("created_at DESC, id DESC").
		Limit(dashboardFeedLimit).
		Find(&memberTitles).Error
	if err != nil {
		return nil, fmt.Errorf("load member titles: %w", err)
	}
	for i := range memberTitles {
		title := &memberTitles[i]
		summary.MemberTitles = append(summary.MemberTitles, TitleWithPending{
			ID:              title.ID,
			Title:           title.Title,
			Leader:          briefOf(title.Leader),
			PendingChapters: countPending(title.Theses),
			CreatedAt:       title.CreatedAt,
			UpdatedAt:       title.UpdatedAt,
		})
	}

	if hasActive {
		active.Theses = ensureTheses(active.Theses)
		overview := &ActiveThesisSummary{
			ID:            active.ID,
			Title:         active.Title,
			CollegeName:   active.CollegeName,
			Adviser:       briefOf(active.Adviser),
			TotalChapters: len(active.Theses),
			CreatedAt:     active.CreatedAt,
		}
		for _, chapter := range active.Theses {
			overview.StatusCounts.add(chapter.Status)
		}
		summary.ActiveThesis = overview

		var feed []AttentionItem
		feed = appendAttention(feed, &active)
		for i := range memberTitles {
			feed = appendAttention(feed, &memberTitles[i])
		}
		summary.NeedsAttention = topAttention(feed, dashboardFeedLimit)

		for _, m := range active.DefenseMilestones() {
			summary.Milestones = append(summary.Milestones, Milestone{
				Kind:        m.Kind,
				At:          m.At,
				ThesisTitle: TitleBrief{ID: active.ID, Title: active.Title},
			})
		}
	}

	summary.ProgramLevel = resolveProgramLevel(active.Theses, profile)
	if summary.ProgramLevel != nil {
		form := summary.ProgramLevel.ApprovalForm()
		summary.ApprovalForm = &form
	}
	return summary, nil
}

func (s *DashboardService) TeacherSummary(ctx context.Context, viewer *models.User) (*TeacherSummary, error) {
	db := s.db.WithContext(ctx)
	summary := &TeacherSummary{
		PendingReviews:     []PendingReview{},
		RecentTitles:       []TitleWithPending{},
		UpcomingMilestones: []Milestone{},
	}
	advised := func() *gorm.DB {
		return db.Model(&models.ThesisTitle{}).Select("id").Where("adviser_id = ?", viewer.ID)
	}

	if err := db.Model(&models.ThesisTitle{}).Where("adviser_id = ?", viewer.ID).Count(&summary.TotalTitles).Error; err != nil {
		return nil, fmt.Errorf("count advisee titles: %w", err)
	}

	err := db.Model(&models.Thesis{}).
		Where("thesis_title_id IN (?)", advised()).
		Where(pendingStatusCondition).
		Count(&summary.PendingChapters).Error
	if err != nil {
		return nil, fmt.Errorf("count pending chapters: %w", err)
	}

	var pending []models.Thesis
	err = db.Preload("ThesisTitle.Leader").
		Where("thesis_title_id IN (?)", advised()).
		Where(pendingStatusCondition).
		Order("updated_at DESC, id DESC").
		Limit(dashboardFeedLimit).
		Find(&pending).Error
	if err != nil {
		return nil, fmt.Errorf("load pending chapters: %w", err)
	}
	for _, chapter := range pending {
		item := PendingReview{
			ID:        chapter.ID,
			Chapter:   chapter.Chapter,
			Status:    models.ResolveStatus(chapter.Status),
			UpdatedAt: chapter.ActivityAt(),
			Link:      ChapterLink(chapter.ThesisTitleID, chapter.ID),
		}
		if chapter.ThesisTitle != nil {
			item.ThesisTitle = TitleBrief{ID: chapter.ThesisTitle.ID, Title: chapter.ThesisTitle.Title}
			item.Leader = briefOf(chapter.ThesisTitle.Leader)
		}
		summary.PendingReviews = append(summary.PendingReviews, item)
	}

	var recent []models.ThesisTitle
	err = db.Preload("Leader").
		Where("adviser_id = ?", viewer.ID).
		Order("updated_at DESC, id DESC").
		Limit(dashboardFeedLimit).
		Find(&recent).Error
	if err != nil {
		return nil, fmt.Errorf("load recent advisee titles: %w", err)
	}
	counts, err := s.pendingCounts(ctx, recent)
	if err != nil {
		return nil, err
	}
	for _, title := range recent {
		summary.RecentTitles = append(summary.RecentTitles, TitleWithPending{
			ID:              title.ID,
			Title:           title.Title,
			Leader:          briefOf(title.Leader),
			PendingChapters: counts[title.ID],
			CreatedAt:       title.CreatedAt,
			UpdatedAt:       title.UpdatedAt,
		})
	}

	var scheduled []models.ThesisTitle
	err = db.Where("adviser_id = ?", viewer.ID).
		Where("proposal_defense_at IS NOT NULL OR final_defense_at IS NOT NULL").
		Find(&scheduled).Error
	if err != nil {
		return nil, fmt.Errorf("load defense schedule: %w", err)
	}
	summary.UpcomingMilestones = upcomingMilestones(scheduled, startOfDay(s.now()), dashboardMilestoneLimit)
	return summary, nil
}

func (s *DashboardService) pendingCounts(ctx context.Context, titles []models.ThesisTitle) (map[uint]int, error) {
	counts := make(map[uint]int, len(titles))
	if len(titles) == 0 {
		return counts, nil
	}
	ids := make([]uint, 0, len(titles))
	for _, title := range titles {
		ids = append(ids, title.ID)
	}

	var rows []struct {
		ThesisTitleID uint
		Total         int
	}
	err := s.db.WithContext(ctx).Model(&models.Thesis{}).
		Select("thesis_title_id, COUNT(*) AS total").
		Where("thesis_title_id IN ?", ids).
		Where(pendingStatusCondition).
		Group("thesis_title_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count pending chapters per title: %w", err)
	}
	for _, row := range rows {
		counts[row.ThesisTitleID] = row.Total
	}
	return counts, nil
}

func appendAttention(feed []AttentionItem, title *models.ThesisTitle) []AttentionItem {
	for _, chapter := range title.Theses {
		if !chapter.NeedsAttention() {
			continue
		}
		feed = append(feed, AttentionItem{
			ID:          chapter.ID,
			Chapter:     chapter.Chapter,
			Status:      models.ResolveStatus(chapter.Status),
			SubmittedAt: chapter.CreatedAt,
			UpdatedAt:   chapter.UpdatedAt,
			ThesisTitle: TitleBrief{ID: title.ID, Title: title.Title},
			Link:        ChapterLink(title.ID, chapter.ID),
			activityAt:  chapter.ActivityAt(),
		})
	}
	return feed
}

// topAttention orders by latest activity first; ties fall back to the higher id.
func topAttention(feed []AttentionItem, limit int) []AttentionItem {
	sort.SliceStable(feed, func(i, j int) bool {
		if !feed[i].activityAt.Equal(feed[j].activityAt) {
			return feed[i].activityAt.After(feed[j].activityAt)
		}
		return feed[i].ID > feed[j].ID
	})
	if len(feed) > limit {
		feed = feed[:limit]
	}
	if feed == nil {
		return []AttentionItem{}
	}
	return feed
}

func upcomingMilestones(titles []models.ThesisTitle, from time.Time, limit int) []Milestone {
	milestones := []Milestone{}
	for i := range titles {
		title := &titles[i]
		for _, m := range title.DefenseMilestones() {
			if m.At.Before(from) {
				continue
			}
			milestones = append(milestones, Milestone{
				Kind:        m.Kind,
				At:          m.At,
				ThesisTitle: TitleBrief{ID: title.ID, Title: title.Title},
			})
		}
	}
	sort.SliceStable(milestones, func(i, j int) bool {
		return milestones[i].At.Before(milestones[j].At)
	})
	if len(milestones) > limit {
		milestones = milestones[:limit]
	}
	return milestones
}

// resolveProgramLevel prefers the first chapter carrying a resolvable flag over the profile.
func resolveProgramLevel(chapters []models.Thesis, profile models.AcademicProfile) *models.ProgramLevel {
	for _, chapter := range chapters {
		if level := models.ResolveProgramLevel(chapter.PostGrad); level != nil {
			return level
		}
	}
	return profile.ProgramLevel
}

func countPending(chapters []models.Thesis) int {
	total := 0
	for _, chapter := range chapters {
		if models.ResolveStatus(chapter.Status) == models.ThesisStatusPending {
			total++
		}
	}
	return total
}

func ensureTheses(chapters []models.Thesis) []models.Thesis {
	if chapters == nil {
		return []models.Thesis{}
	}
	return chapters
}

func briefOf(user *models.User) *UserBrief {
	if user == nil || user.ID == 0 {
		return nil
	}
	return &UserBrief{ID: user.ID, Name: user.Name, Email: user.Email}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
