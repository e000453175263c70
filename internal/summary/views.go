package summary

// View names, as used in URLs.
const (
	ViewAlertsOverTime    = "alerts-over-time"
	ViewAlertsBySeverity  = "alerts-by-severity"
	ViewAlertTypes        = "alert-types"
	ViewTopSourceIPs      = "top-source-ips"
	ViewTopDestinationIPs = "top-destination-ips"
	ViewAlertsByAction    = "alerts-by-action"
)

// Views lists every view name in dashboard order.
func Views() []string {
	return []string{
		ViewAlertsOverTime,
		ViewAlertsBySeverity,
		ViewAlertTypes,
		ViewTopSourceIPs,
		ViewTopDestinationIPs,
		ViewAlertsByAction,
	}
}

// View returns the table for a view name.
func (r *Result) View(name string) (any, bool) {
	switch name {
	case ViewAlertsOverTime:
		return r.AlertsOverTime, true
	case ViewAlertsBySeverity:
		return r.AlertsBySeverity, true
	case ViewAlertTypes:
		return r.AlertTypesDistribution, true
	case ViewTopSourceIPs:
		return r.SourceIPsWithMostAlerts, true
	case ViewTopDestinationIPs:
		return r.DestinationIPsWithMostAlerts, true
	case ViewAlertsByAction:
		return r.AlertsByAction, true
	}
	return nil, false
}
