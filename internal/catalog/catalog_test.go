package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackageByID_ComputesTotals(t *testing.T) {
	pkg, err := PackageByID("popular")
	assert.NoError(t, err)
	assert.Equal(t, int64(850), pkg.Credits)
	assert.Equal(t, int64(150), pkg.Bonus)
	assert.Equal(t, int64(499), pkg.Price)
	assert.Equal(t, int64(90), pkg.GST)
	assert.Equal(t, int64(589), pkg.Total)

	_, err = PackageByID("mega")
	assert.ErrorIs(t, err, ErrPackageNotFound)
}

func TestPlanPrice_ByCycle(t *testing.T) {
	plan, err := PlanByID("gold")
	assert.NoError(t, err)
	assert.Equal(t, int64(599), PlanPrice(plan, "monthly"))
	assert.Equal(t, int64(5999), PlanPrice(plan, "yearly"))

	_, err = PlanByID("diamond")
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestPackages_AllPriced(t *testing.T) {
	for _, pkg := range Packages() {
		assert.Positive(t, pkg.Price, pkg.ID)
		assert.Equal(t, pkg.Price+pkg.GST, pkg.Total, pkg.ID)
	}
}
