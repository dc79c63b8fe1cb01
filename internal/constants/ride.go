package constants

// RideOrigin is the fixed pickup point of every ride request.
const RideOrigin = "Bates College"

// RideDestinations lists the destinations offered by the ride request form.
var RideDestinations = []string{
	"Dorms",
	"Walmart",
	"Target",
	"CVS",
	"CMMC Hospital",
	"Tree Street",
	"Flagship Cinema",
	"Connors Elementary School",
	"Lewiston High School",
	"Auburn Mall",
}
