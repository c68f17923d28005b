package processor

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/airbusgeo/s2-indices/service"
)

// MetadataFile is the product metadata document of a Level-2A workspace
const MetadataFile = "MTD_MSIL2A.xml"

// MetadataField is a field of the MetadataRecord and the tag it is read from
type MetadataField struct {
	Name string
	Tag  string
}

// MetadataFields are the fields of a MetadataRecord
var MetadataFields = []MetadataField{
	{"Processing_Level", "PROCESSING_LEVEL"},
	{"Orbit_Number", "SENSING_ORBIT_NUMBER"},
	{"Cloud_Coverage_Assessment", "Cloud_Coverage_Assessment"},
	{"Cloudy_Pixel_Over_Land_Percentage", "CLOUDY_PIXEL_OVER_LAND_PERCENTAGE"},
	{"Nodata_Pixel_Percentage", "NODATA_PIXEL_PERCENTAGE"},
	{"Saturated_Defective_Pixel_Percentage", "SATURATED_DEFECTIVE_PIXEL_PERCENTAGE"},
	{"Cast_Shadow_Percentage", "CAST_SHADOW_PERCENTAGE"},
	{"Cloud_Shadow_Percentage", "CLOUD_SHADOW_PERCENTAGE"},
	{"Vegetation_Percentage", "VEGETATION_PERCENTAGE"},
	{"Not_Vegetated_Percentage", "NOT_VEGETATED_PERCENTAGE"},
	{"Water_Percentage", "WATER_PERCENTAGE"},
	{"Unclassified_Percentage", "UNCLASSIFIED_PERCENTAGE"},
	{"Medium_Probability_Clouds_Percentage", "MEDIUM_PROBA_CLOUDS_PERCENTAGE"},
	{"High_Probability_Clouds_Percentage", "HIGH_PROBA_CLOUDS_PERCENTAGE"},
	{"Thin_Cirrus_Percentage", "THIN_CIRRUS_PERCENTAGE"},
	{"Snow_Ice_Percentage", "SNOW_ICE_PERCENTAGE"},
	{"Radiative_Transfer_Accuracy", "RADIATIVE_TRANSFER_ACCURACY"},
	{"Water_Vapour_Retrieval_Accuracy", "WATER_VAPOUR_RETRIEVAL_ACCURACY"},
	{"AOT_Retrieval_Accuracy", "AOT_RETRIEVAL_ACCURACY"},
	{"AOT_Retrieval_Method", "AOT_RETRIEVAL_METHOD"},
	{"Granule_Mean_AOT", "GRANULE_MEAN_AOT"},
	{"Granule_Mean_Water_Vapour", "GRANULE_MEAN_WV"},
	{"Ozone_Source", "OZONE_SOURCE"},
	{"Ozone_Value", "OZONE_VALUE"},
}

// MetadataRecord maps the name of a field to its raw value (nil if the tag is absent)
type MetadataRecord map[string]*string

// Get returns the value of the field or "" if it is absent
func (m MetadataRecord) Get(field string) string {
	if v := m[field]; v != nil {
		return *v
	}
	return ""
}

// IsMetadataField returns true if field is the name of a field of a MetadataRecord
func IsMetadataField(field string) bool {
	for _, f := range MetadataFields {
		if f.Name == field {
			return true
		}
	}
	return false
}

// ReadMetadata reads the metadata document of the workspace
// Raise service.ErrMetadataFileMissing
func ReadMetadata(workspace string) (MetadataRecord, error) {
	f, err := os.Open(filepath.Join(workspace, MetadataFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("ReadMetadata[%s]: %w", filepath.Base(workspace), service.ErrMetadataFileMissing)
		}
		return nil, fmt.Errorf("ReadMetadata.%w", err)
	}
	defer f.Close()

	record, err := DecodeMetadata(f)
	if err != nil {
		return nil, fmt.Errorf("ReadMetadata[%s].%w", filepath.Base(workspace), err)
	}
	return record, nil
}

// DecodeMetadata returns the first element (document order, any depth) of each tag of MetadataFields.
// The value is the literal text preceding the first child element (whitespace included).
func DecodeMetadata(r io.Reader) (MetadataRecord, error) {
	fieldsOf := map[string][]string{}
	for _, f := range MetadataFields {
		fieldsOf[f.Tag] = append(fieldsOf[f.Tag], f.Name)
	}
	record := MetadataRecord{}
	for _, f := range MetadataFields {
		record[f.Name] = nil
	}

	var pending []string
	var text strings.Builder
	flush := func() {
		v := text.String()
		for _, name := range pending {
			record[name] = &v
		}
		pending = nil
		text.Reset()
	}

	decoder := xml.NewDecoder(r)
	found := 0
	for found < len(fieldsOf) || pending != nil {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("DecodeMetadata: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			flush()
			if names, ok := fieldsOf[t.Name.Local]; ok && record[names[0]] == nil {
				pending = names
				found++
			}
		case xml.EndElement:
			flush()
		case xml.CharData:
			if pending != nil {
				text.Write(t)
			}
		}
	}
	flush()
	return record, nil
}
