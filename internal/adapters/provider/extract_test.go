package provider

import (
	"testing"

	"github.com/okian/tierlist/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
	"github.com/tidwall/gjson"
)

func TestResolveRole(t *testing.T) {
	convey.Convey("Roles come from the explicit field first, then the spec table", t, func() {
		cases := []struct {
			explicit, spec string
			want           model.Role
			ok             bool
		}{
			{"tank", "Fury", model.RoleTank, true},
			{"Healer", "", model.RoleHealer, true},
			{"damage", "", model.RoleDPS, true},
			{"", "Beast Mastery", model.RoleDPS, true},
			{"", "Restoration", model.RoleHealer, true},
			{"unknown", "Guardian", model.RoleTank, true},
			{"", "Mystery", "", false},
		}
		for _, c := range cases {
			got, ok := resolveRole(c.explicit, c.spec)
			convey.So(ok, convey.ShouldEqual, c.ok)
			convey.So(got, convey.ShouldEqual, c.want)
		}
	})
}

func TestExtractors(t *testing.T) {
	convey.Convey("Metric candidates are read in priority order", t, func() {
		row := gjson.Parse(`{"dps": 12.5, "score": 310, "amount": "n/a"}`)
		v, ok := firstNumber(row, metricExtractors)
		convey.So(ok, convey.ShouldBeTrue)
		convey.So(v, convey.ShouldEqual, 310)

		_, ok = firstNumber(gjson.Parse(`{"name":"x"}`), metricExtractors)
		convey.So(ok, convey.ShouldBeFalse)
	})

	convey.Convey("Timed flags are tri-state", t, func() {
		convey.So(firstBool(gjson.Parse(`{}`), timedExtractors), convey.ShouldBeNil)
		got := firstBool(gjson.Parse(`{"inTime": false, "wasCompletedInTime": true}`), timedExtractors)
		convey.So(got, convey.ShouldNotBeNil)
		convey.So(*got, convey.ShouldBeFalse)
	})

	convey.Convey("Talents accept strings and objects", t, func() {
		got := talentList(gjson.Parse(`["a", {"talentID": 7}, {"id": "b"}, {}, 9]`))
		convey.So(got, convey.ShouldResemble, []string{"a", "7", "b", "9"})
		convey.So(talentList(gjson.Parse(`"x"`)), convey.ShouldBeNil)
	})

	convey.Convey("Stat maps keep numeric members only", t, func() {
		got := numericMap(gjson.Parse(`{"haste": 30, "crit": "high", "mastery": 12.5}`))
		convey.So(got, convey.ShouldResemble, map[string]float64{"haste": 30, "mastery": 12.5})
		convey.So(numericMap(gjson.Parse(`{"crit": "high"}`)), convey.ShouldBeNil)
	})
}
