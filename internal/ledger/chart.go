package ledger

// Well-known account codes. Services resolve these through ResolveAccount
// instead of matching on account names.
const (
	AcctCash               = "1000"
	AcctAccountsReceivable = "1100"
	AcctAccountsPayable    = "2000"
	AcctPrepaidAssessments = "2100"
	AcctFundBalance        = "3000"
	AcctAssessmentIncome   = "4000"
	AcctLateFeeIncome      = "4100"
	AcctFineIncome         = "4200"
	AcctInterestIncome     = "4300"
	AcctMaintenanceExpense = "5000"
	AcctUtilitiesExpense   = "5100"
	AcctInsuranceExpense   = "5200"
	AcctManagementExpense  = "5300"
	AcctReserveExpenditure = "5400"
)

// AccountRef is a typed seed row for the default chart of accounts.
type AccountRef struct {
	Fund   FundType
	Number string
	Name   string
	Type   AccountType
}

// DefaultChart returns the chart of accounts provisioned at tenant onboarding.
func DefaultChart() []AccountRef {
	return []AccountRef{
		{FundOperating, AcctCash, "Cash - Operating", AccountTypeAsset},
		{FundOperating, AcctAccountsReceivable, "Assessments Receivable", AccountTypeAsset},
		{FundOperating, AcctAccountsPayable, "Accounts Payable", AccountTypeLiability},
		{FundOperating, AcctPrepaidAssessments, "Prepaid Assessments", AccountTypeLiability},
		{FundOperating, AcctFundBalance, "Operating Fund Balance", AccountTypeEquity},
		{FundOperating, AcctAssessmentIncome, "Assessment Income", AccountTypeRevenue},
		{FundOperating, AcctLateFeeIncome, "Late Fee Income", AccountTypeRevenue},
		{FundOperating, AcctFineIncome, "Fine Income", AccountTypeRevenue},
		{FundOperating, AcctMaintenanceExpense, "Repairs & Maintenance", AccountTypeExpense},
		{FundOperating, AcctUtilitiesExpense, "Utilities", AccountTypeExpense},
		{FundOperating, AcctInsuranceExpense, "Insurance", AccountTypeExpense},
		{FundOperating, AcctManagementExpense, "Management Fees", AccountTypeExpense},

		{FundReserve, AcctCash, "Cash - Reserve", AccountTypeAsset},
		{FundReserve, AcctFundBalance, "Reserve Fund Balance", AccountTypeEquity},
		{FundReserve, AcctAssessmentIncome, "Reserve Contributions", AccountTypeRevenue},
		{FundReserve, AcctInterestIncome, "Interest Income", AccountTypeRevenue},
		{FundReserve, AcctReserveExpenditure, "Reserve Expenditures", AccountTypeExpense},

		{FundSpecialAssessment, AcctCash, "Cash - Special Assessment", AccountTypeAsset},
		{FundSpecialAssessment, AcctAccountsReceivable, "Special Assessments Receivable", AccountTypeAsset},
		{FundSpecialAssessment, AcctFundBalance, "Special Assessment Fund Balance", AccountTypeEquity},
		{FundSpecialAssessment, AcctAssessmentIncome, "Special Assessment Income", AccountTypeRevenue},
		{FundSpecialAssessment, AcctReserveExpenditure, "Project Expenditures", AccountTypeExpense},
	}
}
