package smoketest

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tierlist/internal/domain/model"
)

func specView(role model.Role, class, spec string, score float64, rank int, tier model.Tier) model.SpecView {
	return model.SpecView{
		SpecScore: model.SpecScore{
			Mode:       model.ModeRaid,
			Role:       role,
			ClassName:  class,
			SpecName:   spec,
			Score:      score,
			Tier:       tier,
			SampleSize: 20,
			Rank:       rank,
		},
		TierLabel: tier.Label(),
	}
}

func TestVerifyView(t *testing.T) {
	cfg := model.DefaultAppConfig()

	Convey("Given a consistent raid view", t, func() {
		view := model.SnapshotView{
			Snapshot: model.Snapshot{ID: "s1", Mode: model.ModeRaid},
			Specs: []model.SpecView{
				specView(model.RoleDPS, "Mage", "Fire", 100, 1, model.TierS),
				specView(model.RoleDPS, "Mage", "Frost", 72.5, 2, model.TierBPlus),
				specView(model.RoleTank, "Monk", "Brewmaster", 100, 1, model.TierS),
				specView(model.RoleHealer, "Druid", "Restoration", 100, 1, model.TierS),
			},
		}

		Convey("Then no problems are reported", func() {
			So(VerifyView(view, cfg), ShouldBeEmpty)
		})

		Convey("When a rank skips a position", func() {
			view.Specs[1].Rank = 3

			Convey("Then the gap is reported", func() {
				So(VerifyView(view, cfg), ShouldHaveLength, 1)
			})
		})

		Convey("When a tier does not match its score", func() {
			view.Specs[1].Tier = model.TierA
			view.Specs[1].TierLabel = model.TierA.Label()

			Convey("Then the tier is reported", func() {
				problems := VerifyView(view, cfg)
				So(problems, ShouldHaveLength, 1)
				So(problems[0], ShouldContainSubstring, "tier")
			})
		})

		Convey("When the roles are out of display order", func() {
			view.Specs[2], view.Specs[3] = view.Specs[3], view.Specs[2]

			Convey("Then the order is reported", func() {
				So(VerifyView(view, cfg), ShouldNotBeEmpty)
			})
		})

		Convey("When a rank delta disagrees with the previous rank", func() {
			prev := 4
			view.Specs[1].PreviousRank = &prev
			view.Specs[1].RankDelta = 1

			Convey("Then the delta is reported", func() {
				problems := VerifyView(view, cfg)
				So(problems, ShouldHaveLength, 1)
				So(problems[0], ShouldContainSubstring, "rank delta")
			})
		})

		Convey("When a lower ranked spec outscores the one above it", func() {
			view.Specs[1].Score = 100
			view.Specs[1].Tier = model.TierS
			view.Specs[1].TierLabel = model.TierS.Label()
			view.Specs[0].Score = 96

			Convey("Then the ordering is reported", func() {
				So(VerifyView(view, cfg), ShouldHaveLength, 1)
			})
		})
	})
}
