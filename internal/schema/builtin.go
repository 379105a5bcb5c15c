package schema

import "github.com/adcommander/adcmdr-tools/internal/models"

// Meta keys with import-time meaning.
const (
	MetaPlacementItems   = "placement_items"
	MetaAdOrder          = "ad_order"
	MetaAdWeights        = "ad_weights"
	MetaThumbnailID      = "thumbnail_id"
	MetaFeaturedImageURL = "featured_image_url"
	MetaImportID         = "import_id"
	MetaImportedPrefix   = "imported_"
	MetaSchedule         = "schedule"
)

// Extra keys present on every exported row.
const (
	ExtraSource     = "source"
	ExtraSourceSite = "source_site"
	ExtraGroups     = "groups"
)

// Stat row keys.
const (
	StatTimestamp = "timestamp"
	StatAdID      = "ad_id"
	StatCount     = "count"
	StatType      = "stat_type"
)

var liveStatuses = []string{
	models.StatusPublish,
	models.StatusDraft,
	models.StatusPending,
	models.StatusPrivate,
	models.StatusFuture,
}

var labelModes = []string{"site_default", "enabled", "disabled"}

var provenance = []Field{
	{Name: ExtraSource, Type: TypeStr, Class: ClassExtra},
	{Name: ExtraSourceSite, Type: TypeStr, Class: ClassExtra},
}

// postPrimary returns the post columns shared by ads and placements.
func postPrimary(withContent bool) []Field {
	fields := []Field{
		{Name: "ID", Type: TypeInt, Class: ClassPrimary},
		{Name: "post_status", Type: TypeStr, Class: ClassPrimary, Restricted: liveStatuses, Default: models.StatusDraft},
		{Name: "post_date", Type: TypeTimestamp, Class: ClassPrimary},
		{Name: "post_date_gmt", Type: TypeTimestamp, Class: ClassPrimary},
	}

	if withContent {
		fields = append(fields, Field{Name: "post_content", Type: TypeEditor, Class: ClassPrimary})
	}

	return append(fields,
		Field{Name: "post_title", Type: TypeStr, Class: ClassPrimary},
		Field{Name: "post_name", Type: TypeStr, Class: ClassPrimary},
		Field{Name: "post_modified", Type: TypeTimestamp, Class: ClassPrimary},
		Field{Name: "post_modified_gmt", Type: TypeTimestamp, Class: ClassPrimary},
		Field{Name: "menu_order", Type: TypeInt, Class: ClassPrimary, Default: int64(0)},
	)
}

func meta(name string, t FieldType, opts ...func(*Field)) Field {
	f := Field{Name: name, Type: t, Class: ClassMeta}
	for _, o := range opts {
		o(&f)
	}

	return f
}

func withDefault(v any) func(*Field) { return func(f *Field) { f.Default = v } }

func restricted(def string, values ...string) func(*Field) {
	return func(f *Field) {
		f.Restricted = values
		f.Default = def
	}
}

func shaped(s Shape) func(*Field) { return func(f *Field) { f.Shape = s } }

func children(c ...Field) func(*Field) { return func(f *Field) { f.Children = c } }

// AdsSchema declares the ad post type.
func AdsSchema() EntitySchema {
	return EntitySchema{
		Type:       models.EntityAds,
		PrimaryKey: "ID",
		Primary:    postPrimary(true),
		Meta: []Field{
			meta("adtype", TypeStr, restricted("bannerad", "bannerad", "text", "richcontent")),
			meta("adcontent_text", TypeStr),
			meta("adcontent_rich", TypeEditor),
			meta("bannerurl", TypeStr),
			meta("newwindow", TypeBool),
			meta("noopener", TypeBool),
			meta("nofollow", TypeBool),
			meta("sponsored", TypeBool),
			meta("display_width", TypeInt),
			meta("display_height", TypeInt),
			meta("float", TypeStr, restricted("no", "no", "left", "right")),
			meta("ad_label", TypeStr, restricted("site_default", labelModes...)),
			meta("expire_enable", TypeBool),
			meta("expire_date", TypeTimestamp),
			meta("custom_code_before", TypeStr),
			meta("custom_code_after", TypeStr),
			meta(MetaSchedule, TypeStr, children(
				Field{Name: "start", Type: TypeTimestamp, Required: true},
				Field{Name: "end", Type: TypeTimestamp},
				Field{Name: "days", Type: TypeStr},
			)),
		},
		Extra: append([]Field{
			{Name: ExtraGroups, Type: TypeStr, Shape: Map, Class: ClassExtra},
			{Name: MetaFeaturedImageURL, Type: TypeStr, Class: ClassExtra},
			{Name: MetaThumbnailID, Type: TypeInt, Class: ClassExtra},
		}, provenance...),
		Unfiltered: []string{"custom_code_before", "custom_code_after", "adcontent_text", "adcontent_rich"},
		Special:    []string{MetaFeaturedImageURL, MetaThumbnailID},
	}
}

// GroupsSchema declares the ad group taxonomy.
func GroupsSchema() EntitySchema {
	return EntitySchema{
		Type:       models.EntityGroups,
		PrimaryKey: "term_id",
		Primary: []Field{
			{Name: "term_id", Type: TypeInt, Class: ClassPrimary},
			{Name: "name", Type: TypeStr, Class: ClassPrimary},
			{Name: "slug", Type: TypeStr, Class: ClassPrimary},
		},
		Meta: []Field{
			meta("mode", TypeStr, restricted("random", "random", "ordered", "rotate", "grid")),
			meta(MetaAdOrder, TypeInt, shaped(List)),
			meta(MetaAdWeights, TypeInt, shaped(Map)),
			meta("rotate_refresh", TypeInt, withDefault(int64(10))),
			meta("grid_cols", TypeInt, withDefault(int64(3))),
			meta("grid_rows", TypeInt, withDefault(int64(1))),
			meta("ad_label", TypeStr, restricted("site_default", labelModes...)),
			meta("custom_code_before", TypeStr),
			meta("custom_code_after", TypeStr),
		},
		Extra:      append([]Field(nil), provenance...),
		Unfiltered: []string{"custom_code_before", "custom_code_after"},
		Deferred:   []string{MetaAdOrder, MetaAdWeights},
	}
}

// PlacementsSchema declares the placement post type.
func PlacementsSchema() EntitySchema {
	return EntitySchema{
		Type:       models.EntityPlacements,
		PrimaryKey: "ID",
		Primary:    postPrimary(false),
		Meta: []Field{
			meta(MetaPlacementItems, TypeStr, shaped(List)),
			meta("position", TypeStr, restricted("before_content",
				"before_content", "after_content", "within_content", "popup", "site_header", "site_footer")),
			meta("paragraph_number", TypeInt, withDefault(int64(1))),
			meta("force_wrapper", TypeBool),
			meta("custom_code_before", TypeStr),
			meta("custom_code_after", TypeStr),
		},
		Extra:      append([]Field(nil), provenance...),
		Unfiltered: []string{"custom_code_before", "custom_code_after"},
		Special:    []string{MetaPlacementItems},
	}
}

// StatsSchema declares the statistics row.
func StatsSchema() EntitySchema {
	return EntitySchema{
		Type: models.EntityStats,
		Primary: []Field{
			{Name: StatTimestamp, Type: TypeTimestamp, Class: ClassPrimary},
			{Name: StatAdID, Type: TypeInt, Class: ClassPrimary},
			{Name: StatCount, Type: TypeInt, Class: ClassPrimary, Default: int64(0)},
			{
				Name: StatType, Type: TypeStr, Class: ClassPrimary,
				Restricted: []string{string(models.StatImpression), string(models.StatClick)},
				Default:    string(models.StatImpression),
			},
		},
		Extra: append([]Field(nil), provenance...),
	}
}

// Builtin returns the four built-in entity schemas.
func Builtin() []EntitySchema {
	return []EntitySchema{GroupsSchema(), AdsSchema(), PlacementsSchema(), StatsSchema()}
}
