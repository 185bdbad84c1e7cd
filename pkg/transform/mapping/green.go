package mapping

// GreenTrips maps the raw green taxi trip table to the transformed layout.
// Names are unchanged; the pickup and dropoff timestamps stay strings.
var GreenTrips = mustParse([][4]string{
	{"vendorid", "long", "vendorid", "long"},
	{"lpep_pickup_datetime", "string", "lpep_pickup_datetime", "string"},
	{"lpep_dropoff_datetime", "string", "lpep_dropoff_datetime", "string"},
	{"store_and_fwd_flag", "string", "store_and_fwd_flag", "string"},
	{"ratecodeid", "long", "ratecodeid", "long"},
	{"pulocationid", "long", "pulocationid", "long"},
	{"dolocationid", "long", "dolocationid", "long"},
	{"passenger_count", "long", "passenger_count", "long"},
	{"trip_distance", "double", "trip_distance", "double"},
	{"fare_amount", "double", "fare_amount", "double"},
	{"extra", "double", "extra", "double"},
	{"mta_tax", "double", "mta_tax", "double"},
	{"tip_amount", "double", "tip_amount", "double"},
	{"tolls_amount", "double", "tolls_amount", "double"},
	{"ehail_fee", "string", "ehail_fee", "string"},
	{"improvement_surcharge", "double", "improvement_surcharge", "double"},
	{"total_amount", "double", "total_amount", "double"},
	{"payment_type", "long", "payment_type", "long"},
	{"trip_type", "long", "trip_type", "long"},
})

func mustParse(tuples [][4]string) []Mapping {
	ms, err := ParseMappings(tuples)
	if err != nil {
		panic(err)
	}
	return ms
}
