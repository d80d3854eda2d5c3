package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-bom/internal/bom/entity"
	"github.com/bitfantasy/nimo-bom/internal/bom/repository"
	"github.com/bitfantasy/nimo-bom/internal/bom/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newRevisionService(t *testing.T) (*RevisionService, *repository.Repositories) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	return NewRevisionService(repos, nil, nil, zap.NewNop()), repos
}

func floatPtr(v float64) *float64 {
	return &v
}

func sampleLoadRequest() *LoadRequest {
	return &LoadRequest{
		PartNo:      "FG-1",
		Description: "Finished good",
		Plant:       "US10",
		Usage:       "1",
		Alternative: "01",
		BaseQty:     floatPtr(100),
		BaseUnit:    "EA",
		Components: []ComponentEntry{
			{PartNo: "C-1", Description: "Component one", Quantity: 10, Unit: "EA", ItemNo: "0010"},
			{PartNo: "C-2", Description: "Component two", Quantity: 5, Unit: "EA", ItemNo: "0020"},
		},
	}
}

func findBOM(t *testing.T, repos *repository.Repositories, partNo string) *entity.BOM {
	t.Helper()
	ctx := context.Background()
	part, err := repos.Part.FindByNo(ctx, partNo)
	if err != nil {
		t.Fatalf("find part %s: %v", partNo, err)
	}
	var bom entity.BOM
	if err := repos.BOM.DB().WithContext(ctx).First(&bom, "part_id = ?", part.ID).Error; err != nil {
		t.Fatalf("find bom for %s: %v", partNo, err)
	}
	return &bom
}

func fixedClock(year int, month time.Month, day int) func() time.Time {
	return func() time.Time {
		return time.Date(year, month, day, 15, 4, 5, 0, time.UTC)
	}
}

func dateStr(ts time.Time) string {
	return ts.UTC().Format("2006-01-02")
}

func TestLoadBOMFirstRevision(t *testing.T) {
	svc, repos := newRevisionService(t)
	svc.now = fixedClock(2026, 3, 10)
	ctx := context.Background()

	res := svc.LoadBOM(ctx, sampleLoadRequest(), "tester")
	if !res.Success {
		t.Fatalf("load failed: %s", res.Message)
	}
	if !res.NewRevisionCreated || res.PriorRevisionClosed || res.Unchanged {
		t.Errorf("unexpected result flags: %+v", res)
	}
	if res.RevisionNo != 1 {
		t.Errorf("revision no = %d, want 1", res.RevisionNo)
	}
	if res.ItemsInserted != 2 {
		t.Errorf("items inserted = %d, want 2", res.ItemsInserted)
	}

	bom := findBOM(t, repos, "FG-1")
	revs, err := repos.BOM.ListRevisions(ctx, bom.ID)
	if err != nil {
		t.Fatalf("list revisions: %v", err)
	}
	if len(revs) != 1 {
		t.Fatalf("revision count = %d, want 1", len(revs))
	}
	rev := revs[0]
	if !rev.IsCurrent() {
		t.Error("first revision should be current")
	}
	if dateStr(rev.EffectiveFrom) != "2026-03-10" {
		t.Errorf("effective_from = %s, want 2026-03-10", dateStr(rev.EffectiveFrom))
	}
	if rev.ContentHash == "" {
		t.Error("content hash should be set")
	}
	items, err := repos.BOM.ListItems(ctx, rev.ID)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("item count = %d, want 2", len(items))
	}

	logs, _, err := repos.LoadLog.List(ctx, "FG-1", "", 1, 10)
	if err != nil {
		t.Fatalf("list load logs: %v", err)
	}
	if len(logs) != 1 || logs[0].Outcome != entity.LoadOutcomeFirstRevision {
		t.Errorf("load log = %+v, want one first_revision entry", logs)
	}
}

func TestLoadBOMUnchanged(t *testing.T) {
	svc, repos := newRevisionService(t)
	ctx := context.Background()

	if res := svc.LoadBOM(ctx, sampleLoadRequest(), "tester"); !res.Success {
		t.Fatalf("first load failed: %s", res.Message)
	}
	res := svc.LoadBOM(ctx, sampleLoadRequest(), "tester")
	if !res.Success {
		t.Fatalf("reload failed: %s", res.Message)
	}
	if !res.Unchanged || res.NewRevisionCreated || res.PriorRevisionClosed {
		t.Errorf("unexpected result flags: %+v", res)
	}
	if res.RevisionNo != 1 {
		t.Errorf("revision no = %d, want 1", res.RevisionNo)
	}

	bom := findBOM(t, repos, "FG-1")
	revs, err := repos.BOM.ListRevisions(ctx, bom.ID)
	if err != nil {
		t.Fatalf("list revisions: %v", err)
	}
	if len(revs) != 1 {
		t.Errorf("revision count = %d, want 1", len(revs))
	}
}

func TestLoadBOMOrderIndependentUnchanged(t *testing.T) {
	svc, _ := newRevisionService(t)
	ctx := context.Background()

	if res := svc.LoadBOM(ctx, sampleLoadRequest(), "tester"); !res.Success {
		t.Fatalf("first load failed: %s", res.Message)
	}

	// 仅组件顺序不同的快照视为内容不变
	req := sampleLoadRequest()
	req.Components[0], req.Components[1] = req.Components[1], req.Components[0]
	res := svc.LoadBOM(ctx, req, "tester")
	if !res.Success || !res.Unchanged {
		t.Errorf("reordered reload = %+v, want unchanged", res)
	}
}

func TestLoadBOMNewRevisionSameDay(t *testing.T) {
	svc, repos := newRevisionService(t)
	svc.now = fixedClock(2026, 3, 10)
	ctx := context.Background()

	if res := svc.LoadBOM(ctx, sampleLoadRequest(), "tester"); !res.Success {
		t.Fatalf("first load failed: %s", res.Message)
	}

	req := sampleLoadRequest()
	req.Components[1].Quantity = 7
	res := svc.LoadBOM(ctx, req, "tester")
	if !res.Success {
		t.Fatalf("second load failed: %s", res.Message)
	}
	if !res.PriorRevisionClosed || !res.NewRevisionCreated || res.Unchanged {
		t.Errorf("unexpected result flags: %+v", res)
	}
	if res.RevisionNo != 2 {
		t.Errorf("revision no = %d, want 2", res.RevisionNo)
	}

	bom := findBOM(t, repos, "FG-1")
	revs, err := repos.BOM.ListRevisions(ctx, bom.ID)
	if err != nil {
		t.Fatalf("list revisions: %v", err)
	}
	if len(revs) != 2 {
		t.Fatalf("revision count = %d, want 2", len(revs))
	}

	// 同日再变更：关闭日期顺延一天，保证 effective_to 严格晚于 effective_from
	old, cur := revs[0], revs[1]
	if old.EffectiveTo == nil {
		t.Fatal("prior revision should be closed")
	}
	if dateStr(*old.EffectiveTo) != "2026-03-11" {
		t.Errorf("prior effective_to = %s, want 2026-03-11", dateStr(*old.EffectiveTo))
	}
	if !old.EffectiveTo.After(old.EffectiveFrom) {
		t.Error("effective_to must be strictly after effective_from")
	}
	if dateStr(cur.EffectiveFrom) != dateStr(*old.EffectiveTo) {
		t.Errorf("revision chain broken: %s != %s", dateStr(cur.EffectiveFrom), dateStr(*old.EffectiveTo))
	}
	if !cur.IsCurrent() {
		t.Error("new revision should be current")
	}
}

func TestLoadBOMRevisionChain(t *testing.T) {
	svc, repos := newRevisionService(t)
	ctx := context.Background()

	svc.now = fixedClock(2026, 3, 10)
	if res := svc.LoadBOM(ctx, sampleLoadRequest(), "tester"); !res.Success {
		t.Fatalf("first load failed: %s", res.Message)
	}

	svc.now = fixedClock(2026, 3, 15)
	req := sampleLoadRequest()
	req.Components[0].Quantity = 12
	if res := svc.LoadBOM(ctx, req, "tester"); !res.Success {
		t.Fatalf("second load failed: %s", res.Message)
	}

	svc.now = fixedClock(2026, 4, 2)
	req = sampleLoadRequest()
	req.Components = req.Components[:1]
	if res := svc.LoadBOM(ctx, req, "tester"); !res.Success {
		t.Fatalf("third load failed: %s", res.Message)
	}

	bom := findBOM(t, repos, "FG-1")
	revs, err := repos.BOM.ListRevisions(ctx, bom.ID)
	if err != nil {
		t.Fatalf("list revisions: %v", err)
	}
	if len(revs) != 3 {
		t.Fatalf("revision count = %d, want 3", len(revs))
	}

	for i, rev := range revs {
		if rev.RevisionNo != i+1 {
			t.Errorf("revision %d has no %d, want %d", i, rev.RevisionNo, i+1)
		}
		if i < len(revs)-1 {
			if rev.EffectiveTo == nil {
				t.Fatalf("revision %d should be closed", rev.RevisionNo)
			}
			// 相邻修订首尾衔接，无空档无重叠
			if dateStr(*rev.EffectiveTo) != dateStr(revs[i+1].EffectiveFrom) {
				t.Errorf("chain gap between revision %d and %d", rev.RevisionNo, revs[i+1].RevisionNo)
			}
			if !rev.EffectiveTo.After(rev.EffectiveFrom) {
				t.Errorf("revision %d effective_to not after effective_from", rev.RevisionNo)
			}
		} else if rev.EffectiveTo != nil {
			t.Errorf("last revision should be open-ended")
		}
	}
	if dateStr(revs[1].EffectiveFrom) != "2026-03-15" || dateStr(revs[2].EffectiveFrom) != "2026-04-02" {
		t.Errorf("effective_from dates = %s, %s", dateStr(revs[1].EffectiveFrom), dateStr(revs[2].EffectiveFrom))
	}
}

func TestLoadBOMDuplicateComponent(t *testing.T) {
	svc, repos := newRevisionService(t)
	ctx := context.Background()

	if res := svc.LoadBOM(ctx, sampleLoadRequest(), "tester"); !res.Success {
		t.Fatalf("first load failed: %s", res.Message)
	}

	req := sampleLoadRequest()
	req.Components = append(req.Components, ComponentEntry{PartNo: "C-1", Quantity: 3, Unit: "EA", ItemNo: "0030"})
	res := svc.LoadBOM(ctx, req, "tester")
	if res.Success {
		t.Fatal("duplicate component load should fail")
	}
	if !strings.Contains(res.Message, "duplicate component") {
		t.Errorf("message = %q, want duplicate component classification", res.Message)
	}

	// 事务整体回滚，当前修订保持不动
	bom := findBOM(t, repos, "FG-1")
	revs, err := repos.BOM.ListRevisions(ctx, bom.ID)
	if err != nil {
		t.Fatalf("list revisions: %v", err)
	}
	if len(revs) != 1 {
		t.Fatalf("revision count = %d, want 1 after rollback", len(revs))
	}
	if !revs[0].IsCurrent() {
		t.Error("existing revision must stay current after a failed load")
	}

	// 失败的导入也要留审计痕迹
	logs, _, err := repos.LoadLog.List(ctx, "FG-1", entity.LoadOutcomeFailed, 1, 10)
	if err != nil {
		t.Fatalf("list load logs: %v", err)
	}
	if len(logs) != 1 || logs[0].Outcome != entity.LoadOutcomeFailed {
		t.Errorf("load log = %+v, want one failed entry", logs)
	}
}

func TestDuplicateClassificationScopedToItems(t *testing.T) {
	svc, repos := newRevisionService(t)
	ctx := context.Background()

	if res := svc.LoadBOM(ctx, sampleLoadRequest(), "tester"); !res.Success {
		t.Fatalf("load failed: %s", res.Message)
	}
	bom := findBOM(t, repos, "FG-1")

	// 数据库层面的行项唯一键冲突归为“同一修订内组件重复”
	dupItems := []ResolvedComponent{
		{ComponentID: "c0000000000000000000000000000001", ItemNo: "0010", Quantity: 1},
		{ComponentID: "c0000000000000000000000000000001", ItemNo: "0020", Quantity: 2},
	}
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := svc.createRevisionTx(ctx, tx, bom.ID, 2, svc.today(), "hash-x", entity.SourceManualLoad, dupItems)
		return err
	})
	var dup *DuplicateComponentError
	if !errors.As(err, &dup) {
		t.Errorf("duplicate item insert classified as %v, want DuplicateComponentError", err)
	}

	// 其他插入点的唯一键冲突（这里撞修订号）不得归入该分类
	err = svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := svc.createRevisionTx(ctx, tx, bom.ID, 1, svc.today(), "hash-y", entity.SourceManualLoad, nil)
		return err
	})
	if err == nil {
		t.Fatal("revision number collision should fail")
	}
	dup = nil
	if errors.As(err, &dup) {
		t.Errorf("revision collision misclassified as duplicate component: %v", err)
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Errorf("revision collision should surface the translated unique violation, got %v", err)
	}
}

func TestLoadBOMMissingIdentity(t *testing.T) {
	svc, _ := newRevisionService(t)
	ctx := context.Background()

	req := sampleLoadRequest()
	req.PartNo = ""
	if res := svc.LoadBOM(ctx, req, "tester"); res.Success {
		t.Error("load without parent part number should fail")
	}

	req = sampleLoadRequest()
	req.Plant = ""
	if res := svc.LoadBOM(ctx, req, "tester"); res.Success {
		t.Error("load without plant should fail")
	}
}

func TestLoadBOMEmptyComponents(t *testing.T) {
	svc, repos := newRevisionService(t)
	ctx := context.Background()

	req := sampleLoadRequest()
	req.Components = nil
	res := svc.LoadBOM(ctx, req, "tester")
	if !res.Success || res.RevisionNo != 1 {
		t.Fatalf("empty load = %+v, want first revision", res)
	}
	if res.ItemsInserted != 0 {
		t.Errorf("items inserted = %d, want 0", res.ItemsInserted)
	}

	bom := findBOM(t, repos, "FG-1")
	revs, err := repos.BOM.ListRevisions(ctx, bom.ID)
	if err != nil {
		t.Fatalf("list revisions: %v", err)
	}
	if len(revs) != 1 {
		t.Fatalf("revision count = %d, want 1", len(revs))
	}
	if revs[0].ContentHash != ComputeFingerprint(nil) {
		t.Errorf("empty revision hash = %s, want reserved empty fingerprint", revs[0].ContentHash)
	}
}

func TestLoadBOMHeaderOverwrite(t *testing.T) {
	svc, repos := newRevisionService(t)
	ctx := context.Background()

	if res := svc.LoadBOM(ctx, sampleLoadRequest(), "tester"); !res.Success {
		t.Fatalf("first load failed: %s", res.Message)
	}

	// 头表数量是非版本化元数据，重导用最新值覆盖
	req := sampleLoadRequest()
	req.BaseQty = floatPtr(250)
	req.Components[0].Quantity = 11
	if res := svc.LoadBOM(ctx, req, "tester"); !res.Success {
		t.Fatalf("second load failed: %s", res.Message)
	}

	bom := findBOM(t, repos, "FG-1")
	if bom.BaseQty == nil || *bom.BaseQty != 250 {
		t.Errorf("base qty = %v, want 250", bom.BaseQty)
	}
}

func TestLoadBOMDescriptionRefresh(t *testing.T) {
	svc, repos := newRevisionService(t)
	ctx := context.Background()

	req := sampleLoadRequest()
	req.Components[0].Description = ""
	if res := svc.LoadBOM(ctx, req, "tester"); !res.Success {
		t.Fatalf("first load failed: %s", res.Message)
	}

	req = sampleLoadRequest()
	req.Components[0].Description = "Component one rev B"
	if res := svc.LoadBOM(ctx, req, "tester"); !res.Success {
		t.Fatalf("second load failed: %s", res.Message)
	}

	part, err := repos.Part.FindByNo(ctx, "C-1")
	if err != nil {
		t.Fatalf("find part: %v", err)
	}
	if part.Description != "Component one rev B" {
		t.Errorf("description = %q, want refreshed value", part.Description)
	}
}

func TestCurrentRevisionSummary(t *testing.T) {
	svc, repos := newRevisionService(t)
	ctx := context.Background()

	if res := svc.LoadBOM(ctx, sampleLoadRequest(), "tester"); !res.Success {
		t.Fatalf("load failed: %s", res.Message)
	}

	bomRow := findBOM(t, repos, "FG-1")
	bom, err := repos.BOM.FindByID(ctx, bomRow.ID)
	if err != nil {
		t.Fatalf("find bom: %v", err)
	}
	summary, err := svc.CurrentRevisionSummary(ctx, bom)
	if err != nil {
		t.Fatalf("current revision summary: %v", err)
	}
	if summary.RevisionNo != 1 || summary.ItemCount != 2 {
		t.Errorf("summary = %+v, want revision 1 with 2 items", summary)
	}
	if summary.EffectiveTo != nil {
		t.Error("current revision should be open-ended")
	}
	if summary.ContentHash == "" {
		t.Error("summary should carry content hash")
	}
}

func TestLoadFromReportEndToEnd(t *testing.T) {
	svc, repos := newRevisionService(t)
	ctx := context.Background()

	report := strings.Join([]string{
		"SAP BOM Export",
		"",
		"Material           FG-9000",
		"Plant/Usage/Alt.   US10 / 1 / 01",
		"Description        Report-loaded assembly",
		"Base Qty      (EA)        1.000,000",
		"Reqd Qty      (EA)            1,000",
		"",
		"| Object ID | Item | Component | Object description | Qty | Un |",
		"|-----------|------|-----------|--------------------|-----|----|",
		"| C-901     | 0010 | X         | First              | 4,000 | EA |",
		"| C-902     | 0020 | X         | Second             | 2,500 | EA |",
	}, "\n")

	res := svc.LoadFromReport(ctx, strings.NewReader(report), "", "ingestd")
	if !res.Success {
		t.Fatalf("report load failed: %s", res.Message)
	}
	if res.RevisionNo != 1 || res.ItemsInserted != 2 {
		t.Errorf("result = %+v, want first revision with 2 items", res)
	}

	bom := findBOM(t, repos, "FG-9000")
	revs, err := repos.BOM.ListRevisions(ctx, bom.ID)
	if err != nil {
		t.Fatalf("list revisions: %v", err)
	}
	if len(revs) != 1 || revs[0].Source != entity.SourceAutoIngest {
		t.Errorf("revisions = %+v, want one auto-ingested revision", revs)
	}
}

func TestLoadFromReportUnparseable(t *testing.T) {
	svc, _ := newRevisionService(t)

	res := svc.LoadFromReport(context.Background(), strings.NewReader("garbage"), "", "ingestd")
	if res.Success {
		t.Fatal("unparseable report should yield a failed result")
	}
	if res.Message != "report not parseable" {
		t.Errorf("message = %q, want report not parseable", res.Message)
	}
}
