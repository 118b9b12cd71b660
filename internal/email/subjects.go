package email

const (
	subjectOpportunityStageFmt  = "%s moved to %s"
	subjectOpportunityClosedFmt = "%s was closed: %s"
)
