package table

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/straye-as/salesdesk/internal/backend"
	"github.com/straye-as/salesdesk/internal/domain"
	"github.com/straye-as/salesdesk/internal/query"
	"github.com/straye-as/salesdesk/internal/urlstate"
)

// ErrUnknownEntity is returned for table names that are not registered
var ErrUnknownEntity = errors.New("unknown table")

var pipelineStages = []string{
	string(domain.LeadStageInitial),
	string(domain.LeadStageFollowUp),
	string(domain.LeadStageWarm),
	string(domain.LeadStageWon),
	string(domain.LeadStageDead),
}

var priorityRank = map[domain.Priority]int{
	domain.PriorityLow:    1,
	domain.PriorityMedium: 2,
	domain.PriorityHigh:   3,
}

func comparePriority(a, b domain.Priority) int {
	return cmp.Compare(priorityRank[a], priorityRank[b])
}

func compareFold(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func compareTimePtr(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}

func identity(keys ...string) map[string]string {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		out[k] = k
	}
	return out
}

func querySpec(stageParam, pageSizeParam string, multi map[string]query.MultiParam, single ...string) *query.Spec {
	return &query.Spec{
		StageParam:    stageParam,
		PageParam:     urlstate.KeyPage,
		PageSizeParam: pageSizeParam,
		SearchParam:   urlstate.KeySearch,
		FromParam:     urlstate.KeyFromDate,
		ToParam:       urlstate.KeyToDate,
		Multi:         multi,
		Single:        identity(single...),
	}
}

var leadSingleKeys = []string{"handover", "aging", "inActiveDays", "priority", "name"}

// Leads is the sales lead pipeline
var Leads = &Entity[domain.Lead]{
	Name: domain.EntityLeads,
	Schema: &urlstate.Schema{
		StageKey:        "stage",
		Stages:          pipelineStages,
		DefaultPageSize: 10,
		PageSizes:       urlstate.DefaultPageSizes,
		MultiKeys:       []string{"State", "ClosingMonth"},
		SingleKeys:      leadSingleKeys,
	},
	Query: querySpec("stage", "pageSize", map[string]query.MultiParam{
		"State":        {Param: "State"},
		"ClosingMonth": {Param: "ClosingMonth", Codes: query.MonthCodes},
	}, leadSingleKeys...),
	Endpoints: backend.Endpoints{
		List:     "/leads",
		Counts:   "/leads/stage-counts",
		Priority: "/leads/priority",
	},
	RowID: func(l domain.Lead) string { return l.ID },
	Columns: []Column[domain.Lead]{
		{Key: "name", Label: "Name", Sortable: true, Compare: func(a, b domain.Lead) int { return compareFold(a.Name, b.Name) }},
		{Key: "companyName", Label: "Company", Sortable: true, Compare: func(a, b domain.Lead) int { return compareFold(a.CompanyName, b.CompanyName) }},
		{Key: "phone", Label: "Phone"},
		{Key: "State", Label: "State", Sortable: true, Compare: func(a, b domain.Lead) int { return compareFold(a.State, b.State) }},
		{Key: "stage", Label: "Stage"},
		{Key: "priority", Label: "Priority", Sortable: true, Compare: func(a, b domain.Lead) int { return comparePriority(a.Priority, b.Priority) }},
		{Key: "ownerName", Label: "Owner", Sortable: true, Compare: func(a, b domain.Lead) int { return compareFold(a.OwnerName, b.OwnerName) }},
		{Key: "value", Label: "Value", Sortable: true, Compare: func(a, b domain.Lead) int { return cmp.Compare(a.Value, b.Value) }},
		{Key: "lastActivity", Label: "Last activity", Sortable: true, Compare: func(a, b domain.Lead) int { return compareTimePtr(a.LastActivity, b.LastActivity) }},
		{Key: "createdAt", Label: "Created", Sortable: true, Compare: func(a, b domain.Lead) int { return a.CreatedAt.Compare(b.CreatedAt) }},
	},
}

// Groups are group bookings sharing the lead pipeline
var Groups = &Entity[domain.Group]{
	Name: domain.EntityGroups,
	Schema: &urlstate.Schema{
		StageKey:        "stage",
		Stages:          pipelineStages,
		DefaultPageSize: 10,
		PageSizes:       urlstate.DefaultPageSizes,
		MultiKeys:       []string{"State"},
		SingleKeys:      []string{"priority", "name"},
	},
	Query: querySpec("stage", "limit", map[string]query.MultiParam{
		"State": {Param: "State"},
	}, "priority", "name"),
	Endpoints: backend.Endpoints{
		List:   "/groups",
		Counts: "/groups/stage-counts",
	},
	RowID: func(g domain.Group) string { return g.ID },
	Columns: []Column[domain.Group]{
		{Key: "groupName", Label: "Group", Sortable: true, Compare: func(a, b domain.Group) int { return compareFold(a.GroupName, b.GroupName) }},
		{Key: "leaderName", Label: "Leader", Sortable: true, Compare: func(a, b domain.Group) int { return compareFold(a.LeaderName, b.LeaderName) }},
		{Key: "phone", Label: "Phone"},
		{Key: "State", Label: "State", Sortable: true, Compare: func(a, b domain.Group) int { return compareFold(a.State, b.State) }},
		{Key: "stage", Label: "Stage"},
		{Key: "priority", Label: "Priority", Sortable: true, Compare: func(a, b domain.Group) int { return comparePriority(a.Priority, b.Priority) }},
		{Key: "members", Label: "Members", Sortable: true, Compare: func(a, b domain.Group) int { return cmp.Compare(a.Members, b.Members) }},
		{Key: "createdAt", Label: "Created", Sortable: true, Compare: func(a, b domain.Group) int { return a.CreatedAt.Compare(b.CreatedAt) }},
	},
}

// Tasks are follow-up tasks tabbed by status
var Tasks = &Entity[domain.Task]{
	Name: domain.EntityTasks,
	Schema: &urlstate.Schema{
		StageKey: "status",
		Stages: []string{
			string(domain.TaskStatusPending),
			string(domain.TaskStatusInProgress),
			string(domain.TaskStatusCompleted),
			string(domain.TaskStatusOverdue),
		},
		DefaultPageSize: 20,
		PageSizes:       urlstate.DefaultPageSizes,
		SingleKeys:      []string{"priority", "name"},
	},
	Query: querySpec("status", "limit", nil, "priority", "name"),
	Endpoints: backend.Endpoints{
		List:   "/tasks",
		Counts: "/tasks/status-counts",
		Status: "/tasks/{id}/status",
	},
	RowID: func(t domain.Task) string { return t.ID },
	Columns: []Column[domain.Task]{
		{Key: "title", Label: "Task", Sortable: true, Compare: func(a, b domain.Task) int { return compareFold(a.Title, b.Title) }},
		{Key: "leadName", Label: "Lead", Sortable: true, Compare: func(a, b domain.Task) int { return compareFold(a.LeadName, b.LeadName) }},
		{Key: "status", Label: "Status"},
		{Key: "priority", Label: "Priority", Sortable: true, Compare: func(a, b domain.Task) int { return comparePriority(a.Priority, b.Priority) }},
		{Key: "dueDate", Label: "Due", Sortable: true, Compare: func(a, b domain.Task) int { return compareTimePtr(a.DueDate, b.DueDate) }},
		{Key: "ownerName", Label: "Owner", Sortable: true, Compare: func(a, b domain.Task) int { return compareFold(a.OwnerName, b.OwnerName) }},
	},
}

// Handovers are won leads awaiting delivery approval
var Handovers = &Entity[domain.Handover]{
	Name: domain.EntityHandovers,
	Schema: &urlstate.Schema{
		StageKey: "status",
		Stages: []string{
			string(domain.HandoverStatusPending),
			string(domain.HandoverStatusApproved),
			string(domain.HandoverStatusRejected),
		},
		DefaultPageSize: 10,
		PageSizes:       urlstate.DefaultPageSizes,
		MultiKeys:       []string{"State", "ClosingMonth"},
		SingleKeys:      []string{"handover", "name"},
	},
	Query: querySpec("status", "pageSize", map[string]query.MultiParam{
		"State":        {Param: "State"},
		"ClosingMonth": {Param: "ClosingMonth", Codes: query.MonthCodes},
	}, "handover", "name"),
	Endpoints: backend.Endpoints{
		List:   "/handovers",
		Counts: "/handovers/status-counts",
	},
	RowID: func(h domain.Handover) string { return h.ID },
	Columns: []Column[domain.Handover]{
		{Key: "leadName", Label: "Lead", Sortable: true, Compare: func(a, b domain.Handover) int { return compareFold(a.LeadName, b.LeadName) }},
		{Key: "State", Label: "State", Sortable: true, Compare: func(a, b domain.Handover) int { return compareFold(a.State, b.State) }},
		{Key: "ClosingMonth", Label: "Closing month"},
		{Key: "status", Label: "Status"},
		{Key: "value", Label: "Value", Sortable: true, Compare: func(a, b domain.Handover) int { return cmp.Compare(a.Value, b.Value) }},
		{Key: "createdAt", Label: "Created", Sortable: true, Compare: func(a, b domain.Handover) int { return a.CreatedAt.Compare(b.CreatedAt) }},
	},
}

// Names lists the registered tables
func Names() []domain.Entity {
	return []domain.Entity{domain.EntityLeads, domain.EntityGroups, domain.EntityTasks, domain.EntityHandovers}
}

// SchemaFor returns the URL schema of a table
func SchemaFor(name domain.Entity) (*urlstate.Schema, error) {
	switch name {
	case domain.EntityLeads:
		return Leads.Schema, nil
	case domain.EntityGroups:
		return Groups.Schema, nil
	case domain.EntityTasks:
		return Tasks.Schema, nil
	case domain.EntityHandovers:
		return Handovers.Schema, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, name)
}

// Open starts a controller for the named table reading and writing location
func Open(name domain.Entity, client *backend.Client, creds backend.Credentials, location urlstate.Location, opts Options) (Table, error) {
	switch name {
	case domain.EntityLeads:
		return open(Leads, client, creds, location, opts), nil
	case domain.EntityGroups:
		return open(Groups, client, creds, location, opts), nil
	case domain.EntityTasks:
		return open(Tasks, client, creds, location, opts), nil
	case domain.EntityHandovers:
		return open(Handovers, client, creds, location, opts), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, name)
}

func open[T any](e *Entity[T], client *backend.Client, creds backend.Credentials, location urlstate.Location, opts Options) Table {
	return New(e, backend.NewSource[T](client, creds, e.Endpoints), location, opts)
}

// Load fetches a one-shot view of the named table without keeping a session
func Load(ctx context.Context, name domain.Entity, client *backend.Client, creds backend.Credentials, rawQuery string, timeout time.Duration) (View, error) {
	switch name {
	case domain.EntityLeads:
		return Snapshot(ctx, Leads, backend.NewSource[domain.Lead](client, creds, Leads.Endpoints), rawQuery, timeout)
	case domain.EntityGroups:
		return Snapshot(ctx, Groups, backend.NewSource[domain.Group](client, creds, Groups.Endpoints), rawQuery, timeout)
	case domain.EntityTasks:
		return Snapshot(ctx, Tasks, backend.NewSource[domain.Task](client, creds, Tasks.Endpoints), rawQuery, timeout)
	case domain.EntityHandovers:
		return Snapshot(ctx, Handovers, backend.NewSource[domain.Handover](client, creds, Handovers.Endpoints), rawQuery, timeout)
	}
	return View{}, fmt.Errorf("%w: %q", ErrUnknownEntity, name)
}
