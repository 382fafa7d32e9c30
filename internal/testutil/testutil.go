package testutil

import (
	"time"

	"github.com/ujenga-aus/JengaIQ-sub003/pkg/models"
)

// SampleExport returns a small but complete schedule export: one
// project row, three tasks and a single finish-to-start relationship.
// T1 and T2 form the driving chain, T3 finishes eight hours early.
func SampleExport() string {
	return "ERMHDR\t19.12\n" +
		"%T\tPROJECT\n" +
		"%F\tproj_id\tproj_short_name\tplan_start_date\tplan_end_date\n" +
		"%R\tP1\tHarbour Upgrade\t2024-03-01 08:00\t2024-03-01 20:00\n" +
		"%T\tTASK\n" +
		"%F\ttask_id\ttask_code\ttask_name\ttarget_start_date\ttarget_end_date\ttarget_drtn_hr_cnt\n" +
		"%R\tT1\tA100\tMobilise\t2024-03-01 08:00\t2024-03-01 16:00\t8\n" +
		"%R\tT2\tA200\tPour slab\t2024-03-01 16:00\t2024-03-01 20:00\t4\n" +
		"%R\tT3\tA300\tSite survey\t2024-03-01 08:00\t2024-03-01 12:00\t4\n" +
		"%T\tTASKPRED\n" +
		"%F\ttask_id\tpred_task_id\tpred_type\tlag_hr_cnt\n" +
		"%R\tT2\tT1\tPR_FS\t0\n"
}

// CyclicExport returns an export whose two tasks depend on each other,
// forming a relationship cycle the float pass must report.
func CyclicExport() string {
	return "%T\tTASK\n" +
		"%F\ttask_id\ttask_name\ttarget_start_date\ttarget_end_date\n" +
		"%R\tT1\tFirst\t2024-03-01 08:00\t2024-03-01 16:00\n" +
		"%R\tT2\tSecond\t2024-03-01 16:00\t2024-03-01 20:00\n" +
		"%T\tTASKPRED\n" +
		"%F\ttask_id\tpred_task_id\tpred_type\n" +
		"%R\tT2\tT1\tPR_FS\n" +
		"%R\tT1\tT2\tPR_FS\n"
}

// CreateTestImport creates an import record for testing
func CreateTestImport(id, programID string, status models.ImportStatus) *models.Import {
	return &models.Import{
		ID:        id,
		ProgramID: programID,
		Filename:  "baseline.xer",
		SizeBytes: int64(len(SampleExport())),
		Source:    models.SourceAPI,
		Status:    status,
		CreatedAt: time.Now(),
	}
}
