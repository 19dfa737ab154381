package memory

import (
	"context"
	"time"

	"github.com/noah-isme/classpal-api/internal/models"
	"github.com/noah-isme/classpal-api/internal/repository"
)

// Demo identities created by SeedDemo.
const (
	DemoClassID   = "cs101"
	DemoUserID    = "u-you"
	DemoMonitorID = "u-sarah"
	DemoAdvisorID = "u-nguyen"
)

// SeedDemo fills the store with the sample classroom used in demo mode.
// Entities are written through the repositories so counts, versions and the
// audit trail stay consistent.
func (s *Store) SeedDemo(now time.Time) {
	ctx := context.Background()
	day := 24 * time.Hour

	for _, class := range []models.ClassSummary{
		{ID: "cs101", Name: "CS101 · Product Ops", Advisor: "Ms. Nguyen", Schedule: "Mon · 07:30 - 09:00"},
		{ID: "eng204", Name: "ENG204 · Debate Lab", Advisor: "Mr. Long", Schedule: "Wed · 13:00 - 15:00"},
		{ID: "phy150", Name: "PHY150 · Robotics", Advisor: "Dr. Tran", Schedule: "Fri · 15:00 - 17:00"},
	} {
		class.CreatedAt = now
		s.PutClass(class)
	}

	members := []struct {
		user models.User
		role models.ClassRole
	}{
		{models.User{ID: DemoUserID, DisplayName: "You", StudentID: "20123450", Role: models.RoleStudent}, models.ClassRoleStudent},
		{models.User{ID: DemoMonitorID, DisplayName: "Sarah Lee", StudentID: "20123451", Role: models.RoleStudent}, models.ClassRoleMonitor},
		{models.User{ID: "u-john", DisplayName: "John Smith", StudentID: "20123452", Role: models.RoleStudent}, models.ClassRoleTreasurer},
		{models.User{ID: "u-mike", DisplayName: "Mike Chen", StudentID: "20123456", Role: models.RoleStudent}, models.ClassRoleStudent},
		{models.User{ID: "u-emma", DisplayName: "Emma Wilson", StudentID: "20123457", Role: models.RoleStudent}, models.ClassRoleStudent},
		{models.User{ID: "u-alex", DisplayName: "Alex Johnson", StudentID: "20123458", Role: models.RoleStudent}, models.ClassRoleStudent},
		{models.User{ID: DemoAdvisorID, DisplayName: "Ms. Nguyen", Role: models.RoleStudent}, models.ClassRoleAdvisor},
	}
	inviteeIDs := make([]string, 0, len(members))
	for _, m := range members {
		m.user.CreatedAt = now
		s.PutUser(m.user)
		s.PutMember(models.ClassMember{ClassID: DemoClassID, UserID: m.user.ID, Role: m.role, JoinedAt: now})
		if m.role != models.ClassRoleAdvisor {
			inviteeIDs = append(inviteeIDs, m.user.ID)
		}
	}
	s.PutMember(models.ClassMember{ClassID: "eng204", UserID: DemoUserID, Role: models.ClassRoleStudent, JoinedAt: now})

	s.seedDuties(ctx, now, day)
	s.seedEvents(ctx, now, day, inviteeIDs)
	s.seedAssets(ctx, now, day)
	s.seedFunds(ctx, now, day)
}

func (s *Store) seedDuties(ctx context.Context, now time.Time, day time.Duration) {
	duties := s.Duties()
	at := func(d time.Duration) *time.Time { t := now.Truncate(day).Add(d); return &t }

	type seedDuty struct {
		title    string
		when     *time.Time
		assignee string
		status   models.DutyStatus
		points   int
	}
	for _, d := range []seedDuty{
		{"Clean Whiteboard", at(14 * time.Hour), DemoUserID, models.DutyStatusPending, 12},
		{"Arrange seating grid", at(day + 10*time.Hour), DemoUserID, models.DutyStatusWaitingApproval, 15},
		{"Attendance scan", at(-day), DemoUserID, models.DutyStatusDone, 20},
		{"Lock classroom", at(17 * time.Hour), "u-john", models.DutyStatusPending, 10},
	} {
		duty := &models.Duty{
			ClassID:     DemoClassID,
			Title:       d.title,
			ScheduledAt: d.when,
			AssigneeID:  d.assignee,
			Status:      d.status,
			Points:      d.points,
			CreatedBy:   DemoMonitorID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		switch d.status {
		case models.DutyStatusWaitingApproval:
			duty.SubmittedAt = &now
		case models.DutyStatusDone:
			reviewer := DemoMonitorID
			duty.SubmittedAt = &now
			duty.ReviewedBy = &reviewer
			duty.ReviewedAt = &now
		}
		_ = duties.Create(ctx, duty)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ledger := make(map[string]models.PointBalance)
	for i, b := range []struct {
		userID string
		points int
	}{
		{DemoMonitorID, 450},
		{"u-john", 380},
		{DemoUserID, 320},
		{"u-mike", 280},
		{"u-emma", 250},
	} {
		ledger[b.userID] = models.PointBalance{
			ClassID:   DemoClassID,
			UserID:    b.userID,
			Points:    b.points,
			ReachedAt: now.Add(-time.Duration(i+1) * time.Hour),
		}
	}
	s.points[DemoClassID] = ledger
}

func (s *Store) seedEvents(ctx context.Context, now time.Time, day time.Duration, inviteeIDs []string) {
	events := s.Events()
	type seedEvent struct {
		title, location, description string
		startsIn                     time.Duration
		responses                    map[string]models.ResponseChoice
	}
	for _, e := range []seedEvent{
		{"Class Party", "University Cafeteria", "End of semester celebration with food and games!", 7 * day,
			map[string]models.ResponseChoice{DemoMonitorID: models.ResponseRegistered, "u-john": models.ResponseRegistered, "u-emma": models.ResponseDeclined}},
		{"Study Group Session", "Library Room 302", "Final exam preparation session", 6 * day,
			map[string]models.ResponseChoice{DemoUserID: models.ResponseRegistered, "u-mike": models.ResponseRegistered, "u-alex": models.ResponseDeclined}},
		{"Guest Lecture: AI in Education", "Auditorium A", "Special guest speaker from Google", 11 * day,
			map[string]models.ResponseChoice{"u-emma": models.ResponseRegistered}},
	} {
		event := &models.EventItem{
			ClassID:     DemoClassID,
			Title:       e.title,
			Description: e.description,
			Location:    e.location,
			StartsAt:    now.Add(e.startsIn),
			CreatedBy:   DemoMonitorID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		_ = events.Create(ctx, event, inviteeIDs)

		counts := event.ResponseCounts
		version := event.Version
		for userID, choice := range e.responses {
			next, ok := counts.Move(nil, choice)
			if !ok {
				continue
			}
			err := events.ApplyResponse(ctx, repository.EventResponseParams{
				EventID:         event.ID,
				ClassID:         event.ClassID,
				ExpectedVersion: version,
				Counts:          next,
				Response:        models.EventResponse{EventID: event.ID, UserID: userID, Choice: choice, RespondedAt: now},
				UpdatedAt:       now,
			})
			if err != nil {
				continue
			}
			counts = next
			version++
		}
	}
}

func (s *Store) seedAssets(ctx context.Context, now time.Time, day time.Duration) {
	assets := s.Assets()
	type lending struct {
		userID   string
		borrowed time.Duration
		returned time.Duration
	}
	for _, a := range []struct {
		name, icon string
		history    []lending
	}{
		{"Classroom Remote", "📱", []lending{{DemoMonitorID, 2 * time.Hour, 0}}},
		{"Classroom Key", "🔑", []lending{{"u-john", day + 3*time.Hour, day}}},
		{"Microphone", "🎤", []lending{{"u-emma", 2*day + 2*time.Hour, 2 * day}}},
		{"HDMI Cable", "🔌", []lending{{DemoUserID, 3*day + time.Hour, 3 * day}}},
		{"Whiteboard Markers", "✏️", []lending{{"u-mike", time.Hour, 0}}},
		{"Extension Cord", "⚡", nil},
	} {
		asset := &models.Asset{
			ClassID:   DemoClassID,
			Name:      a.name,
			Icon:      a.icon,
			Status:    models.AssetStatusAvailable,
			CreatedAt: now.Add(-7 * day),
			UpdatedAt: now.Add(-7 * day),
		}
		_ = assets.Create(ctx, asset)

		for _, l := range a.history {
			borrowedAt := now.Add(-l.borrowed)
			holder := l.userID
			next := *asset
			next.Status = models.AssetStatusInUse
			next.HolderID = &holder
			next.HeldSince = &borrowedAt
			next.UpdatedAt = borrowedAt
			if err := assets.Transition(ctx, repository.AssetTransitionParams{
				Asset:           &next,
				ExpectedVersion: asset.Version,
				Entry:           &models.AssetAuditEntry{ClassID: DemoClassID, AssetID: asset.ID, AssetName: asset.Name, Action: models.AssetActionBorrowed, UserID: holder, Timestamp: borrowedAt},
			}); err != nil {
				continue
			}
			*asset = next
			if l.returned == 0 {
				continue
			}

			returnedAt := now.Add(-l.returned)
			next = *asset
			next.Status = models.AssetStatusAvailable
			next.HolderID = nil
			next.HeldSince = nil
			next.UpdatedAt = returnedAt
			if err := assets.Transition(ctx, repository.AssetTransitionParams{
				Asset:           &next,
				ExpectedVersion: asset.Version,
				Entry:           &models.AssetAuditEntry{ClassID: DemoClassID, AssetID: asset.ID, AssetName: asset.Name, Action: models.AssetActionReturned, UserID: holder, Timestamp: returnedAt},
			}); err != nil {
				continue
			}
			*asset = next
		}
	}
}

func (s *Store) seedFunds(ctx context.Context, now time.Time, day time.Duration) {
	funds := s.Funds()
	date := func(month time.Month, d int) time.Time {
		return time.Date(now.Year(), month, d, 0, 0, 0, 0, time.UTC)
	}
	for _, tx := range []models.FundTransaction{
		{Type: models.TransactionIncome, Description: "Monthly Class Fee - January", Amount: 2000000, Date: date(time.January, 15), Category: "Contribution"},
		{Type: models.TransactionExpense, Description: "Class Party Supplies", Amount: 800000, Date: date(time.January, 20), HasReceipt: true, Category: "Event"},
		{Type: models.TransactionIncome, Description: "Equipment Sale", Amount: 500000, Date: date(time.January, 22), Category: "Other"},
		{Type: models.TransactionExpense, Description: "Whiteboard Markers & Erasers", Amount: 150000, Date: date(time.January, 25), HasReceipt: true, Category: "Supplies"},
		{Type: models.TransactionExpense, Description: "Teacher Appreciation Gift", Amount: 300000, Date: date(time.January, 28), HasReceipt: true, Category: "Gift"},
		{Type: models.TransactionIncome, Description: "Late Payment - Sarah Lee", Amount: 500000, Date: date(time.February, 1), Category: "Contribution"},
	} {
		tx := tx
		tx.ClassID = DemoClassID
		tx.RecordedBy = "u-john"
		tx.CreatedAt = now
		_ = funds.AppendTransaction(ctx, &tx)
	}

	for _, d := range []struct {
		studentID string
		due       time.Duration
	}{
		{"u-mike", -5 * day},
		{"u-emma", 2 * day},
		{"u-alex", -2 * day},
	} {
		_ = funds.CreateDebt(ctx, &models.DebtEntry{
			ClassID:   DemoClassID,
			StudentID: d.studentID,
			AmountDue: 500000,
			DueDate:   now.Truncate(day).Add(d.due),
			CreatedAt: now,
		})
	}
}
