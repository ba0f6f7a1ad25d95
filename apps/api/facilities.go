package main

type FacilityCategory string

const (
	FacilityUS  FacilityCategory = "US"
	FacilityROK FacilityCategory = "ROK"
)

type StaticFacility struct {
	Name      string           `json:"name"`
	Latitude  float64          `json:"lat"`
	Longitude float64          `json:"lon"`
	Category  FacilityCategory `json:"category"`
}

var usFacilities = []StaticFacility{
	{Name: "Camp Humphreys", Latitude: 36.9630, Longitude: 127.0308, Category: FacilityUS},
	{Name: "Camp Casey", Latitude: 37.9400, Longitude: 127.0668, Category: FacilityUS},
	{Name: "Camp Walker", Latitude: 35.8497, Longitude: 128.5944, Category: FacilityUS},
	{Name: "Camp Carroll", Latitude: 35.9059, Longitude: 128.8500, Category: FacilityUS},
	{Name: "Osan Air Base", Latitude: 37.1522, Longitude: 127.0706, Category: FacilityUS},
	{Name: "Kunsan Air Base", Latitude: 35.9042, Longitude: 126.6155, Category: FacilityUS},
	{Name: "Jinhae Naval Base", Latitude: 35.1484, Longitude: 128.6811, Category: FacilityUS},
	{Name: "Yongsan Garrison", Latitude: 37.5387, Longitude: 126.9656, Category: FacilityUS},
	{Name: "K-16 Air Base", Latitude: 37.4568, Longitude: 127.1205, Category: FacilityUS},
}

var rokFacilities = []StaticFacility{
	{Name: "Gyeryong", Latitude: 36.2741, Longitude: 127.2486, Category: FacilityROK},
	{Name: "Paju", Latitude: 37.7536, Longitude: 126.8367, Category: FacilityROK},
	{Name: "Chuncheon", Latitude: 37.8746, Longitude: 127.7306, Category: FacilityROK},
	{Name: "Yongin", Latitude: 37.2411, Longitude: 127.1774, Category: FacilityROK},
	{Name: "Yangju", Latitude: 37.7920, Longitude: 127.0620, Category: FacilityROK},
	{Name: "Pocheon", Latitude: 38.0624, Longitude: 127.2746, Category: FacilityROK},
	{Name: "Uijeongbu", Latitude: 37.7383, Longitude: 127.0378, Category: FacilityROK},
	{Name: "Wonju", Latitude: 37.3420, Longitude: 127.9425, Category: FacilityROK},
	{Name: "Gangneung", Latitude: 37.7517, Longitude: 128.8965, Category: FacilityROK},
	{Name: "Seongnam", Latitude: 37.4123, Longitude: 127.1258, Category: FacilityROK},
	{Name: "Busan Naval Base", Latitude: 35.1796, Longitude: 129.0756, Category: FacilityROK},
	{Name: "Jeju Naval Base", Latitude: 33.4996, Longitude: 126.5312, Category: FacilityROK},
	{Name: "Seosan Air Base", Latitude: 36.7830, Longitude: 126.4995, Category: FacilityROK},
	{Name: "Cheongju Air Base", Latitude: 36.7173, Longitude: 127.4986, Category: FacilityROK},
	{Name: "Gimhae Air Base", Latitude: 35.1798, Longitude: 129.1302, Category: FacilityROK},
	{Name: "Gwangju Air Base", Latitude: 35.1232, Longitude: 126.8054, Category: FacilityROK},
	{Name: "Suwon Air Base", Latitude: 37.2869, Longitude: 127.0087, Category: FacilityROK},
	{Name: "Wonju Air Base", Latitude: 37.3420, Longitude: 127.9425, Category: FacilityROK},
}
