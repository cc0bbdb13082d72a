// cmd/worker-manager/workers.go
package main

import (
	"time"

	"credit-eligibility-workers/internal/common/aws"
	"credit-eligibility-workers/internal/common/camunda"
	"credit-eligibility-workers/internal/common/config"

	cct "credit-eligibility-workers/internal/workers/beneficiary/classify-case-type"
	ei "credit-eligibility-workers/internal/workers/beneficiary/estimate-income"
	qe "credit-eligibility-workers/internal/workers/beneficiary/quick-estimate"

	cla "credit-eligibility-workers/internal/workers/loan/create-loan-application"
	dla "credit-eligibility-workers/internal/workers/loan/decide-loan-application"
	rla "credit-eligibility-workers/internal/workers/loan/route-loan-application"
	sdn "credit-eligibility-workers/internal/workers/loan/send-decision-notification"
	vla "credit-eligibility-workers/internal/workers/loan/validate-loan-application"

	ccs "credit-eligibility-workers/internal/workers/scoring/calculate-credit-score"
	rsr "credit-eligibility-workers/internal/workers/scoring/record-score-result"
	sd "credit-eligibility-workers/internal/workers/scoring/score-distribution"
)

// handlerTimeout keeps a handler's own deadline inside the job lock the
// broker grants the worker.
func handlerTimeout(cfg *config.Config, taskType string, def time.Duration) time.Duration {
	jobTimeout := config.GetDuration(config.GetWorkerConfig(cfg, taskType).Timeout)
	if jobTimeout > 0 && jobTimeout < def {
		return jobTimeout
	}
	return def
}

func registerWorkers(cfg *config.Config, d *deps) {
	db := d.pg.GetDB()
	rdb := d.redis.GetClient()
	start := func(taskType string, handler camunda.JobHandler) {
		d.workers.Start(taskType, config.GetWorkerConfig(cfg, taskType), handler)
	}

	// --- Scoring ---
	var indexer rsr.ScoreIndexer
	var searcher sd.ScoreSearcher
	if d.es != nil {
		indexer, searcher = d.es, d.es
	}

	scoreCfg := ccs.LoadConfig()
	scoreCfg.Timeout = handlerTimeout(cfg, ccs.TaskType, scoreCfg.Timeout)
	scoreCfg.CacheEnabled = cfg.Scoring.CacheEnabled
	if cfg.Scoring.CacheTTL > 0 {
		scoreCfg.CacheTTL = time.Duration(cfg.Scoring.CacheTTL) * time.Second
	}
	start(ccs.TaskType, ccs.NewHandler(scoreCfg, rdb, d.obs, d.log))

	recordCfg := rsr.LoadConfig()
	recordCfg.Timeout = handlerTimeout(cfg, rsr.TaskType, recordCfg.Timeout)
	recordCfg.ScoreIndex = cfg.Scoring.ScoreIndex
	start(rsr.TaskType, rsr.NewHandler(recordCfg, db, indexer, d.obs, d.log))

	distCfg := sd.LoadConfig()
	distCfg.Timeout = handlerTimeout(cfg, sd.TaskType, distCfg.Timeout)
	distCfg.ScoreIndex = cfg.Scoring.ScoreIndex
	start(sd.TaskType, sd.NewHandler(distCfg, searcher, db, d.log))

	// --- Beneficiary profile ---
	caseCfg := cct.LoadConfig()
	caseCfg.Timeout = handlerTimeout(cfg, cct.TaskType, caseCfg.Timeout)
	start(cct.TaskType, cct.NewHandler(caseCfg, db, d.log))

	incomeCfg := ei.LoadConfig()
	incomeCfg.Timeout = handlerTimeout(cfg, ei.TaskType, incomeCfg.Timeout)
	start(ei.TaskType, ei.NewHandler(incomeCfg, db, rdb, d.log))

	quickCfg := qe.LoadConfig()
	quickCfg.Timeout = handlerTimeout(cfg, qe.TaskType, quickCfg.Timeout)
	start(qe.TaskType, qe.NewHandler(quickCfg, d.log))

	// --- Loan workflow ---
	validateCfg := vla.LoadConfig()
	validateCfg.Timeout = handlerTimeout(cfg, vla.TaskType, validateCfg.Timeout)
	if len(cfg.Loan.RequiredDocuments) > 0 {
		validateCfg.RequiredDocuments = cfg.Loan.RequiredDocuments
	}
	start(vla.TaskType, vla.NewHandler(validateCfg, db, d.log))

	routeCfg := rla.LoadConfig()
	routeCfg.Timeout = handlerTimeout(cfg, rla.TaskType, routeCfg.Timeout)
	if cfg.Loan.AutoApproveMaxAmount > 0 {
		routeCfg.AutoApproveMaxAmount = cfg.Loan.AutoApproveMaxAmount
	}
	if cfg.Loan.HighPriorityAmount > 0 {
		routeCfg.HighPriorityAmount = cfg.Loan.HighPriorityAmount
	}
	if cfg.Loan.OfficerQueueKey != "" {
		routeCfg.OfficerQueueKey = cfg.Loan.OfficerQueueKey
	}
	if cfg.Loan.QueueBusyThreshold > 0 {
		routeCfg.QueueBusyThreshold = cfg.Loan.QueueBusyThreshold
	}
	start(rla.TaskType, rla.NewHandler(routeCfg, rdb, d.log))

	createCfg := cla.LoadConfig()
	createCfg.Timeout = handlerTimeout(cfg, cla.TaskType, createCfg.Timeout)
	start(cla.TaskType, cla.NewHandler(createCfg, db, d.log))

	decideCfg := dla.LoadConfig()
	decideCfg.Timeout = handlerTimeout(cfg, dla.TaskType, decideCfg.Timeout)
	start(dla.TaskType, dla.NewHandler(decideCfg, db, d.log))

	// SES/SNS stay nil interfaces when AWS is not configured.
	var sesSvc aws.SESService
	var snsSvc aws.SNSService
	if d.aws != nil {
		sesSvc, snsSvc = d.aws.SES, d.aws.SNS
	}
	notifyCfg := sdn.LoadConfig()
	notifyCfg.Timeout = handlerTimeout(cfg, sdn.TaskType, notifyCfg.Timeout)
	notifyCfg.EmailEnabled = cfg.Notifications.Email.Enabled && sesSvc != nil
	notifyCfg.SMSEnabled = cfg.Notifications.SMS.Enabled && snsSvc != nil
	if cfg.Notifications.Email.FromEmail != "" {
		notifyCfg.FromEmail = cfg.Notifications.Email.FromEmail
	}
	if cfg.Notifications.SMS.SenderID != "" {
		notifyCfg.SMSSenderID = cfg.Notifications.SMS.SenderID
	}
	start(sdn.TaskType, sdn.NewHandler(notifyCfg, sesSvc, snsSvc, d.log))
}
