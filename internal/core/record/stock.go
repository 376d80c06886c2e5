package record

// Stock history column names, matching the warehouse table
const (
	FieldStockName = "stock_name"
	FieldDate      = "Date"
	FieldPrice     = "Price"
	FieldOpen      = "Open"
	FieldHigh      = "High"
	FieldLow       = "Low"
	FieldVol       = "Vol"
	FieldChange    = "Change"
)

// StockSchema is the daily price history table; one row per stock per trading day
func StockSchema(table string) Schema {
	if table == "" {
		table = "StockData"
	}
	return Schema{
		Table: table,
		Fields: []FieldSpec{
			{Name: FieldStockName, Kind: KindString, Required: true, Description: "listed name of the stock"},
			{Name: FieldDate, Kind: KindDate, Required: true, Description: "trading day"},
			{Name: FieldPrice, Kind: KindFloat, Description: "closing price"},
			{Name: FieldOpen, Kind: KindFloat, Description: "opening price"},
			{Name: FieldHigh, Kind: KindFloat, Description: "session high"},
			{Name: FieldLow, Kind: KindFloat, Description: "session low"},
			{Name: FieldVol, Kind: KindFloat, Description: "traded volume"},
			{Name: FieldChange, Kind: KindFloat, Description: "daily change in percent"},
		},
		KeyFields: []string{FieldStockName, FieldDate},
	}
}
