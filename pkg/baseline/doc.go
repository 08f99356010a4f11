// Package baseline persists the reference evaluation for each application
// and guards against risk score regressions across runs.
//
// The guard supports CI/CD workflows where you want to:
//   - Accept runs whose risk score stays within a tolerance of the last
//     known-good evaluation
//   - Treat the very first evaluation of an application as the reference
//   - Fail closed when the baseline store cannot be read
//
// # Baseline File Format
//
// Baselines are JSON documents, one file per application:
//
//	{
//	  "version": "1.0",
//	  "app_name": "payments-api",
//	  "status": "WARN",
//	  "risk_score": 16,
//	  "severity_counts": {
//	    "CRITICAL": 0,
//	    "HIGH": 0,
//	    "MEDIUM": 4,
//	    "LOW": 0,
//	    "INFO": 0
//	  },
//	  "total_findings": 4,
//	  "fingerprint": "89a1cf3b0c1d22aa479cde1b55c0fee1",
//	  "run_id": "d5e7c0de-6a14-4c38-9c58-1f2f7a7f7b10",
//	  "recorded_at": "2026-01-15T10:30:00Z",
//	  "updated_at": "2026-01-20T14:45:00Z"
//	}
//
// # Usage
//
// Checking a run against the stored baseline:
//
//	store, err := baseline.NewFileStore(".riskgate/baselines")
//	if err != nil {
//	    return err
//	}
//	report, err := baseline.CheckRegression(ctx, store, "payments-api", result, baseline.Tolerance{Value: 5})
//	if err != nil {
//	    return err // store failure, fail closed
//	}
//	if !report.Accepted {
//	    fmt.Println(report.Summary)
//	    os.Exit(2)
//	}
//
// A missing baseline is not an error: the report comes back accepted
// with FirstRun set, matching the first evaluation of a new application.
//
// # Thread Safety
//
// FileStore is safe for concurrent use within a single process. It does
// not coordinate between processes beyond atomic file replacement.
package baseline
