package stats

// Usage event kinds as recorded by the towers.
var (
	CallKinds = []string{
		"local_call", "local_recv_call", "outside_call", "incoming_call",
		"free_call", "error_call",
	}
	SMSKinds = []string{
		"local_sms", "local_recv_sms", "outside_sms", "incoming_sms",
		"free_sms", "error_sms",
	}
	SubscriberKinds       = []string{"provisioned", "deprovisioned"}
	ZeroBalanceSubscriber = []string{"zero_balance_subscriber"}
	InactiveSubscriber    = []string{"expired", "first_expired", "blocked"}
	HealthStatus          = []string{"bts down", "bts up"}
	TransferKinds         = []string{"transfer", "add-money"}
	WaterfallKinds        = []string{"loader", "reload_rate", "reload_amount", "reload_transaction", "average_frequency"}
	DenominationKinds     = []string{"start_amount", "end_amount"}
	GPRSKinds             = []string{"total_data", "uploaded_data", "downloaded_data"}
	TimeseriesStatKeys    = []string{
		"ccch_sdcch4_load", "tch_f_max", "tch_f_load", "sdcch8_max",
		"tch_f_pdch_load", "tch_f_pdch_max", "tch_h_load", "tch_h_max",
		"sdcch8_load", "ccch_sdcch4_max",
		"sdcch_load", "sdcch_available", "tchf_load", "tchf_available",
		"pch_active", "pch_total", "agch_active", "agch_pending",
		"gprs_current_pdchs", "gprs_utilization_percentage", "noise_rssi_db",
		"noise_ms_rssi_target_db", "cpu_percent", "memory_percent", "disk_percent",
		"bytes_sent_delta", "bytes_received_delta",
	}
)

// family is the client that answers a stat type.
type family int

const (
	familyTopUp family = iota
	familySMS
	familyCall
	familyGPRS
	familyTimeseries
	familySubscriber
	familyZeroBalance
	familyInactive
	familyTransfer
	familyHealth
	familyWaterfall
)

var families = map[string]family{}

func register(f family, kinds ...string) {
	for _, k := range kinds {
		families[k] = f
	}
}

func init() {
	register(familySMS, SMSKinds...)
	register(familySMS, "sms")
	register(familyCall, CallKinds...)
	register(familyCall, "call")
	register(familyGPRS, GPRSKinds...)
	register(familyTimeseries, TimeseriesStatKeys...)
	register(familySubscriber, SubscriberKinds...)
	register(familyZeroBalance, ZeroBalanceSubscriber...)
	register(familyInactive, InactiveSubscriber...)
	register(familyTransfer, TransferKinds...)
	register(familyHealth, HealthStatus...)
	register(familyWaterfall, WaterfallKinds...)
	register(familyTopUp, DenominationKinds...)
}

// IsValidStat reports whether a stat type may be requested without the
// dynamic-stat flag.
func IsValidStat(kind string) bool {
	_, ok := families[kind]
	return ok
}

// familyOf falls back to the top-up client for dynamic kinds such as
// denomination brackets.
func familyOf(kind string) family {
	if f, ok := families[kind]; ok {
		return f
	}
	return familyTopUp
}
